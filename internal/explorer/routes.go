package explorer

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelength/pavelength/internal/middleware"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/schema", h.SchemaHandler)
	r.Post("/sessions", h.UploadHandler)

	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(h.Sessions))

		r.Get("/", h.SummaryHandler)
		r.Delete("/", h.DeleteHandler)
		r.Get("/sample", h.SampleHandler)
		r.Get("/events", h.EventsHandler)

		r.Get("/mapping", h.MappingHandler)
		r.Post("/mapping/suggest", h.SuggestHandler)
		r.Delete("/mapping/suggest", h.DiscardSuggestionHandler)
		r.Put("/mapping/fields/{field}", h.SelectFieldHandler)
		r.Post("/mapping/submit", h.SubmitHandler)

		r.Post("/query", h.QueryHandler)
		r.Post("/filter", h.FilterHandler)
		r.Delete("/filter", h.ResetFilterHandler)
		r.Get("/options/{field}", h.OptionsHandler)

		r.Get("/table", h.TableHandler)
		r.Get("/map", h.MapHandler)
		r.Get("/stats", h.StatsHandler)
		r.Get("/export.csv", h.ExportHandler)
	})

	return r
}
