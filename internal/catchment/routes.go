package catchment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/schools", h.GetSchoolsForPoint)
	r.Get("/schools/search", h.SearchSchools)
	r.Get("/school/{id}", h.GetSchool)
	r.Get("/school/{id}/addresses", h.GetSchoolAddresses)

	return r
}
