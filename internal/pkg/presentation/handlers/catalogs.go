package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/jqnatividad/nationalmap/internal/pkg/application/services/catalog"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"golang.org/x/exp/slices"
)

var tracer = otel.Tracer("nationalmap/api/catalogs")

func NewRetrieveCatalogsHandler(logger zerolog.Logger, services map[string]catalog.CatalogService) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		names := make([]string, 0, len(services))
		for name := range services {
			names = append(names, name)
		}
		slices.Sort(names)

		responseBody, err := json.Marshal(names)
		if err != nil {
			logger.Error().Err(err).Msg("failed to marshal catalog names to json")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		responseBody = []byte("{\"data\":" + string(responseBody) + "}")

		w.Header().Add("Content-Type", "application/json")
		w.Write(responseBody)
	})
}

func NewRetrieveCatalogByNameHandler(logger zerolog.Logger, services map[string]catalog.CatalogService) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		var err error
		ctx, span := tracer.Start(r.Context(), "retrieve-catalog-by-name")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, _, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		catalogName, _ := url.QueryUnescape(chi.URLParam(r, "name"))
		if catalogName == "" {
			err = fmt.Errorf("no catalog name is supplied in query")
			log.Error().Err(err).Msg("bad request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		svc, found := services[catalogName]
		if !found {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		responseBody, err := json.Marshal(svc.Root())
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal catalog group tree to json")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		responseBody = []byte("{\"data\":" + string(responseBody) + "}")

		w.Header().Add("Content-Type", "application/json")
		w.Header().Add("Cache-Control", "max-age=600")
		w.Write(responseBody)
	})
}
