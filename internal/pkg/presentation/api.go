package presentation

import (
	"compress/flate"
	"context"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jqnatividad/nationalmap/internal/pkg/application/services/catalog"
	"github.com/jqnatividad/nationalmap/internal/pkg/presentation/handlers"
	"github.com/riandyrn/otelchi"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type API interface {
	Start(port string) error
}

type nationalmapAPI struct {
	router chi.Router
	log    zerolog.Logger
}

func NewAPI(r chi.Router, ctx context.Context, services map[string]catalog.CatalogService) API {
	return newNationalmapAPI(r, ctx, services)
}

func newNationalmapAPI(r chi.Router, ctx context.Context, services map[string]catalog.CatalogService) *nationalmapAPI {
	log := logging.GetFromContext(ctx)

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	}).Handler)

	// Enable gzip compression for our responses
	compressor := middleware.NewCompressor(
		flate.DefaultCompression,
		"application/json", "application/xml", "text/xml",
	)
	r.Use(compressor.Handler)
	r.Use(otelchi.Middleware("nationalmap", otelchi.WithChiRoutes(r)))

	a := &nationalmapAPI{
		router: r,
		log:    log,
	}

	r.Get("/api/catalogs", handlers.NewRetrieveCatalogsHandler(log, services))
	r.Get("/api/catalogs/{name}", handlers.NewRetrieveCatalogByNameHandler(log, services))
	r.Get("/proxy/*", handlers.NewProxyHandler(log))

	a.addProbeHandlers(r)

	return a
}

func (a *nationalmapAPI) Start(port string) error {
	a.log.Info().Msgf("Starting nationalmap on port:%s", port)
	return http.ListenAndServe(":"+port, a.router)
}

func (a *nationalmapAPI) addProbeHandlers(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
