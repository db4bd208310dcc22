package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/bigkaa/fileattach/internal/api/errors"
)

// Recoverer перехватывает panic в обработчике и отвечает 500 INTERNAL_ERROR.
// http.ErrAbortHandler пробрасывается дальше.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // значение panic, не ошибка
					panic(rec)
				}

				logger.Error("Panic при обработке запроса",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.String("stack", string(debug.Stack())),
				)
				apierrors.InternalError(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
