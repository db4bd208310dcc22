package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// corsMaxAge — время кэширования preflight-ответа браузером, секунды.
const corsMaxAge = 300

// CORS возвращает middleware для браузерных клиентов с указанных origins.
// "*" разрешает любой origin; credentials при этом не передаются.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: !allowAll,
		MaxAge:           corsMaxAge,
	})
}
