package openapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/fileattach/internal/api/errors"
)

// ServerInterface — операции API.
type ServerInterface interface {
	// Загрузка файла
	// (POST /api/files/upload)
	UploadFile(w http.ResponseWriter, r *http.Request)
	// Файлы текущего пользователя
	// (GET /api/files)
	ListFiles(w http.ResponseWriter, r *http.Request)
	// Подписанная ссылка на скачивание
	// (GET /api/files/{id}/download)
	DownloadFile(w http.ResponseWriter, r *http.Request, id FileId)
	// Удаление файла
	// (DELETE /api/files/{id})
	DeleteFile(w http.ResponseWriter, r *http.Request, id FileId)
	// OpenAPI документ
	// (GET /api/openapi.json)
	GetOpenAPISpec(w http.ResponseWriter, r *http.Request)
	// Liveness probe
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// Readiness probe
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// Prometheus метрики
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// MiddlewareFunc — middleware отдельной операции.
type MiddlewareFunc func(http.Handler) http.Handler

// InvalidParamFormatError — параметр запроса не удалось разобрать.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("некорректный формат параметра %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ServerInterfaceWrapper разбирает параметры и вызывает ServerInterface.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, h http.HandlerFunc) {
	var handler http.Handler = h
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

// bindFileID разбирает параметр пути id в UUID.
func (siw *ServerInterfaceWrapper) bindFileID(w http.ResponseWriter, r *http.Request) (FileId, bool) {
	var raw string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &raw,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return FileId{}, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "id", Err: err})
		return FileId{}, false
	}
	return id, true
}

// UploadFile — обёртка операции uploadFile.
func (siw *ServerInterfaceWrapper) UploadFile(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.UploadFile)
}

// ListFiles — обёртка операции listFiles.
func (siw *ServerInterfaceWrapper) ListFiles(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.ListFiles)
}

// DownloadFile — обёртка операции downloadFile.
func (siw *ServerInterfaceWrapper) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindFileID(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DownloadFile(w, r, id)
	})
}

// DeleteFile — обёртка операции deleteFile.
func (siw *ServerInterfaceWrapper) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := siw.bindFileID(w, r)
	if !ok {
		return
	}
	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.DeleteFile(w, r, id)
	})
}

// GetOpenAPISpec — обёртка операции getOpenAPISpec.
func (siw *ServerInterfaceWrapper) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetOpenAPISpec)
}

// HealthLive — обёртка операции healthLive.
func (siw *ServerInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthLive)
}

// HealthReady — обёртка операции healthReady.
func (siw *ServerInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.HealthReady)
}

// GetMetrics — обёртка операции getMetrics.
func (siw *ServerInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetMetrics)
}

// ChiServerOptions — параметры регистрации маршрутов.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux регистрирует маршруты API на существующем chi-роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions регистрирует маршруты API с указанными параметрами.
// Ошибки разбора параметров по умолчанию возвращаются как 400 VALIDATION_ERROR.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			apierrors.ValidationError(w, err.Error())
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/api/files/upload", wrapper.UploadFile)
		r.Get(options.BaseURL+"/api/files", wrapper.ListFiles)
		r.Get(options.BaseURL+"/api/files/{id}/download", wrapper.DownloadFile)
		r.Delete(options.BaseURL+"/api/files/{id}", wrapper.DeleteFile)
		r.Get(options.BaseURL+"/api/openapi.json", wrapper.GetOpenAPISpec)
		r.Get(options.BaseURL+"/health/live", wrapper.HealthLive)
		r.Get(options.BaseURL+"/health/ready", wrapper.HealthReady)
		r.Get(options.BaseURL+"/metrics", wrapper.GetMetrics)
	})

	return r
}
