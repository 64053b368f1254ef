package routes

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/rtf-converter/internal/api/errors"
)

// ServerInterface — обработчики всех маршрутов rtf-converter.
type ServerInterface interface {
	// POST /convert
	Convert(w http.ResponseWriter, r *http.Request)
	// POST /template
	UploadTemplate(w http.ResponseWriter, r *http.Request)
	// GET /template
	ListTemplates(w http.ResponseWriter, r *http.Request, params ListTemplatesParams)
	// GET /template/{unique_id}
	GetTemplate(w http.ResponseWriter, r *http.Request, uniqueId TemplateId, params GetTemplateParams) //nolint:revive // имя из OpenAPI контракта
	// GET /template/{unique_id}/content
	GetTemplateContent(w http.ResponseWriter, r *http.Request, uniqueId TemplateId) //nolint:revive // имя из OpenAPI контракта
	// PATCH /template/{unique_id}
	UpdateTemplate(w http.ResponseWriter, r *http.Request, uniqueId TemplateId) //nolint:revive // имя из OpenAPI контракта
	// DELETE /template/{unique_id}
	DeleteTemplate(w http.ResponseWriter, r *http.Request, uniqueId TemplateId) //nolint:revive // имя из OpenAPI контракта
	// GET /healthcheck
	Healthcheck(w http.ResponseWriter, r *http.Request)
	// GET /health/live
	HealthLive(w http.ResponseWriter, r *http.Request)
	// GET /health/ready
	HealthReady(w http.ResponseWriter, r *http.Request)
	// GET /metrics
	GetMetrics(w http.ResponseWriter, r *http.Request)
	// GET /openapi.yaml
	GetOpenAPI(w http.ResponseWriter, r *http.Request)
}

// ChiServerOptions — настройки привязки маршрутов.
type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []func(http.Handler) http.Handler
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// serverInterfaceWrapper разбирает параметры пути и запроса
// и передаёт их типизированными в ServerInterface.
type serverInterfaceWrapper struct {
	handler          ServerInterface
	middlewares      []func(http.Handler) http.Handler
	errorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *serverInterfaceWrapper) wrap(h http.HandlerFunc) http.Handler {
	var handler http.Handler = h
	for _, mw := range siw.middlewares {
		handler = mw(handler)
	}
	return handler
}

func (siw *serverInterfaceWrapper) Convert(w http.ResponseWriter, r *http.Request) {
	siw.wrap(siw.handler.Convert).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) UploadTemplate(w http.ResponseWriter, r *http.Request) {
	siw.wrap(siw.handler.UploadTemplate).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) ListTemplates(w http.ResponseWriter, r *http.Request) {
	var params ListTemplatesParams

	if err := runtime.BindQueryParameter("form", true, false, "file_name", r.URL.Query(), &params.FileName); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "file_name", Err: err})
		return
	}

	siw.wrap(func(w http.ResponseWriter, r *http.Request) {
		siw.handler.ListTemplates(w, r, params)
	}).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) GetTemplate(w http.ResponseWriter, r *http.Request) {
	uniqueID, ok := siw.bindUniqueID(w, r)
	if !ok {
		return
	}

	var params GetTemplateParams
	if err := runtime.BindQueryParameter("form", true, false, "version", r.URL.Query(), &params.Version); err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "version", Err: err})
		return
	}

	siw.wrap(func(w http.ResponseWriter, r *http.Request) {
		siw.handler.GetTemplate(w, r, uniqueID, params)
	}).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) GetTemplateContent(w http.ResponseWriter, r *http.Request) {
	uniqueID, ok := siw.bindUniqueID(w, r)
	if !ok {
		return
	}
	siw.wrap(func(w http.ResponseWriter, r *http.Request) {
		siw.handler.GetTemplateContent(w, r, uniqueID)
	}).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	uniqueID, ok := siw.bindUniqueID(w, r)
	if !ok {
		return
	}
	siw.wrap(func(w http.ResponseWriter, r *http.Request) {
		siw.handler.UpdateTemplate(w, r, uniqueID)
	}).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	uniqueID, ok := siw.bindUniqueID(w, r)
	if !ok {
		return
	}
	siw.wrap(func(w http.ResponseWriter, r *http.Request) {
		siw.handler.DeleteTemplate(w, r, uniqueID)
	}).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) Healthcheck(w http.ResponseWriter, r *http.Request) {
	siw.wrap(siw.handler.Healthcheck).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) HealthLive(w http.ResponseWriter, r *http.Request) {
	siw.wrap(siw.handler.HealthLive).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) HealthReady(w http.ResponseWriter, r *http.Request) {
	siw.wrap(siw.handler.HealthReady).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) GetMetrics(w http.ResponseWriter, r *http.Request) {
	siw.wrap(siw.handler.GetMetrics).ServeHTTP(w, r)
}

func (siw *serverInterfaceWrapper) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	siw.wrap(siw.handler.GetOpenAPI).ServeHTTP(w, r)
}

// bindUniqueID разбирает {unique_id} из пути. При ошибке ответ уже записан.
func (siw *serverInterfaceWrapper) bindUniqueID(w http.ResponseWriter, r *http.Request) (TemplateId, bool) {
	var uniqueID TemplateId
	err := runtime.BindStyledParameterWithOptions("simple", "unique_id", chi.URLParam(r, "unique_id"), &uniqueID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "unique_id", Err: err})
		return uniqueID, false
	}
	return uniqueID, true
}

// InvalidParamFormatError — параметр запроса не соответствует типу.
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

// defaultErrorHandler отвечает 400 MALFORMED_REQUEST.
func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	apierrors.MalformedRequest(w, err.Error())
}

// notFoundHandler — JSON 404 для неизвестных маршрутов.
func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	apierrors.NotFound(w, fmt.Sprintf("Маршрут %s %s не найден", r.Method, r.URL.Path))
}

// methodNotAllowedHandler — JSON 405 для известных путей с чужим методом.
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeMalformedRequest,
		fmt.Sprintf("Метод %s не поддерживается для %s", r.Method, r.URL.Path))
}

// Handler создаёт http.Handler с маршрутами на новом chi-роутере.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerFromMux регистрирует маршруты на переданном роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{BaseRouter: r})
}

// HandlerWithOptions регистрирует маршруты с заданными настройками.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = defaultErrorHandler
	}

	wrapper := serverInterfaceWrapper{
		handler:          si,
		middlewares:      options.Middlewares,
		errorHandlerFunc: options.ErrorHandlerFunc,
	}

	base := options.BaseURL
	r.Group(func(r chi.Router) {
		r.Post(base+"/convert", wrapper.Convert)
		r.Post(base+"/template", wrapper.UploadTemplate)
		r.Get(base+"/template", wrapper.ListTemplates)
		r.Get(base+"/template/{unique_id}", wrapper.GetTemplate)
		r.Get(base+"/template/{unique_id}/content", wrapper.GetTemplateContent)
		r.Patch(base+"/template/{unique_id}", wrapper.UpdateTemplate)
		r.Delete(base+"/template/{unique_id}", wrapper.DeleteTemplate)
		r.Get(base+"/healthcheck", wrapper.Healthcheck)
		r.Get(base+"/health/live", wrapper.HealthLive)
		r.Get(base+"/health/ready", wrapper.HealthReady)
		r.Get(base+"/metrics", wrapper.GetMetrics)
		r.Get(base+"/openapi.yaml", wrapper.GetOpenAPI)
	})
	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	return r
}
