package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/jqnatividad/nationalmap/internal/pkg/application/services/catalog"
	"github.com/jqnatividad/nationalmap/internal/pkg/application/services/sources"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/ckan"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/wms"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/urls"
	"github.com/jqnatividad/nationalmap/internal/pkg/presentation"
)

var catalogsFileName string

func openCatalogsFile(ctx context.Context, path string) *os.File {
	log := logging.GetFromContext(ctx)

	sourcesFile, err := os.Open(path)
	if err != nil {
		log.Info().Msgf("failed to open the catalog sources file %s.", path)
		return nil
	}

	return sourcesFile
}

func main() {
	serviceName := "nationalmap"
	serviceVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	log.Info().Msgf("Starting up %s ...", serviceName)

	flag.StringVar(&catalogsFileName, "catalogs", "/opt/nationalmap/catalogs.yaml", "A yaml file with the catalog sources to discover datasets from")
	flag.Parse()

	catalogsFile := openCatalogsFile(ctx, catalogsFileName)
	if catalogsFile == nil {
		log.Fatal().Msg("Unable to open catalog sources file. Exiting.")
	}
	defer catalogsFile.Close()

	registry, err := sources.NewRegistry(catalogsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load catalog sources")
	}

	proxyBaseURL := env.GetVariableOrDefault(log, "NATIONALMAP_PROXY_URL", "")
	openHosts := strings.Split(env.GetVariableOrDefault(log, "NATIONALMAP_OPEN_HOSTS", ""), ",")
	policy := urls.NewPolicy(proxyBaseURL, openHosts)

	searcher := ckan.NewClient(policy, log)
	capabilities := wms.NewClient(policy, log)

	services := map[string]catalog.CatalogService{}

	for _, source := range registry.Sources() {
		query := catalog.Query{
			Endpoint:             source.Endpoint,
			Filter:               source.Filter,
			Blacklist:            source.Blacklist,
			FilterByCapabilities: source.FilterByCapabilities,
			MinScaleDenominator:  source.MinScaleDenominator,
			DataCustodian:        source.DataCustodian,
		}

		svc := catalog.NewCatalogService(ctx, log, source.Name, query, searcher, capabilities)
		svc.Start()

		services[source.Name] = svc
	}

	port := env.GetVariableOrDefault(log, "SERVICE_PORT", "8880")

	r := chi.NewRouter()
	api := presentation.NewAPI(r, ctx, services)

	err = api.Start(port)
	if err != nil {
		log.Fatal().Msgf("failed to start router: %s", err.Error())
	}
}
