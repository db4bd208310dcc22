package openapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"

	apierrors "github.com/bigkaa/fileattach/internal/api/errors"
)

// RequestValidator возвращает middleware, проверяющий запрос по OpenAPI документу.
// Тело запроса не читается: multipart загрузка проверяется обработчиком.
// Аутентификация выполняется отдельным middleware, здесь security не проверяется.
// Запросы к маршрутам вне документа передаются дальше без проверки.
func RequestValidator(doc *openapi3.T) (func(http.Handler) http.Handler, error) {
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("создание OpenAPI роутера: %w", err)
	}

	options := &openapi3filter.Options{
		ExcludeRequestBody: true,
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				// 404/405 отдаёт chi
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeValidationError,
					validationMessage(err), err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// validationMessage — короткое описание ошибки проверки запроса.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Parameter != nil {
		return fmt.Sprintf("Некорректный параметр %s", reqErr.Parameter.Name)
	}
	return "Некорректный запрос"
}
