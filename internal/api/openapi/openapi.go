// Пакет openapi — встроенный OpenAPI-контракт File API.
// Контракт загружается и валидируется при старте, по нему проверяются
// входящие запросы. Тело запроса не читается: multipart остаётся потоковым.
package openapi

import (
	"context"
	_ "embed"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/bigkaa/filehub/internal/api/errors"
	"github.com/bigkaa/filehub/internal/service"
)

//go:embed api.yaml
var spec []byte

// Spec возвращает исходный YAML контракта.
func Spec() []byte {
	return spec
}

// Load разбирает и валидирует встроенный контракт.
func Load() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("разбор OpenAPI-контракта: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("валидация OpenAPI-контракта: %w", err)
	}
	return doc, nil
}

// Validator возвращает middleware проверки запросов по контракту.
// Маршруты вне контракта пропускаются без проверки.
func Validator(doc *openapi3.T, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("построение роутера OpenAPI: %w", err)
	}
	logger = logger.With(slog.String("component", "openapi"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				// ErrPathNotFound, ErrMethodNotAllowed — решает chi
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					ExcludeRequestBody: true,
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				logger.Debug("Запрос не прошёл проверку контракта",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				if isPathParamError(err) {
					errors.NotFound(w, service.MsgFileNotFound)
					return
				}
				errors.BadRequest(w, service.MsgInvalidParameter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

// isPathParamError — нарушение в path-параметре. Такой id не может
// существовать в хранилище, поэтому ответ тот же, что для неизвестного id.
func isPathParamError(err error) bool {
	var reqErr *openapi3filter.RequestError
	return stderrors.As(err, &reqErr) &&
		reqErr.Parameter != nil &&
		reqErr.Parameter.In == openapi3.ParameterInPath
}
