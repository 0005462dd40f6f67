// routes.go — интерфейс обработчиков File API и привязка к chi.
// Path-параметры извлекаются через oapi-codegen runtime, как в
// сгенерированном chi-server wrapper.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/bigkaa/filehub/internal/api/errors"
	"github.com/bigkaa/filehub/internal/service"
)

// FileID — идентификатор записи файла из path-параметра {id}.
type FileID = string

// ServerInterface — все endpoints filehub, кроме UI и статики.
type ServerInterface interface {
	// (GET /api/files)
	ListFiles(w http.ResponseWriter, r *http.Request)
	// (POST /api/files)
	UploadFile(w http.ResponseWriter, r *http.Request)
	// (GET /api/files/{id})
	GetFile(w http.ResponseWriter, r *http.Request, id FileID)
	// (DELETE /api/files/{id})
	DeleteFile(w http.ResponseWriter, r *http.Request, id FileID)
	// (GET /api/files/{id}/download)
	DownloadFile(w http.ResponseWriter, r *http.Request, id FileID)
	// (GET /api/openapi.yaml)
	GetOpenAPISpec(w http.ResponseWriter, r *http.Request)
	// (GET /health/live)
	HealthLive(w http.ResponseWriter, r *http.Request)
	// (GET /health/ready)
	HealthReady(w http.ResponseWriter, r *http.Request)
	// (GET /metrics)
	GetMetrics(w http.ResponseWriter, r *http.Request)
}

// serverInterfaceWrapper разбирает параметры и вызывает обработчик.
type serverInterfaceWrapper struct {
	handler ServerInterface
}

// HandlerFromMux регистрирует маршруты ServerInterface на роутере.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	wrapper := serverInterfaceWrapper{handler: si}

	r.Group(func(r chi.Router) {
		r.Get("/api/files", si.ListFiles)
		r.Post("/api/files", si.UploadFile)
		r.Get("/api/files/{id}", wrapper.GetFile)
		r.Delete("/api/files/{id}", wrapper.DeleteFile)
		r.Get("/api/files/{id}/download", wrapper.DownloadFile)
		r.Get("/api/openapi.yaml", si.GetOpenAPISpec)
		r.Get("/health/live", si.HealthLive)
		r.Get("/health/ready", si.HealthReady)
		r.Get("/metrics", si.GetMetrics)
	})

	return r
}

func (siw *serverInterfaceWrapper) GetFile(w http.ResponseWriter, r *http.Request) {
	id, ok := bindFileID(w, r)
	if !ok {
		return
	}
	siw.handler.GetFile(w, r, id)
}

func (siw *serverInterfaceWrapper) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := bindFileID(w, r)
	if !ok {
		return
	}
	siw.handler.DeleteFile(w, r, id)
}

func (siw *serverInterfaceWrapper) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := bindFileID(w, r)
	if !ok {
		return
	}
	siw.handler.DownloadFile(w, r, id)
}

// bindFileID извлекает {id} (style simple, explode false).
func bindFileID(w http.ResponseWriter, r *http.Request) (FileID, bool) {
	var id FileID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil {
		errors.BadRequest(w, service.MsgInvalidParameter)
		return "", false
	}
	return id, true
}
