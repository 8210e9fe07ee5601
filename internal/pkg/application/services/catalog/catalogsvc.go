package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/jqnatividad/nationalmap/internal/pkg/domain"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/ckan"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/wms"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("nationalmap/svcs/catalog")

// ErrLoadSkipped is returned when a load request is short circuited,
// either because a load is already in flight or because the requested
// query matches the one already applied.
var ErrLoadSkipped = errors.New("load skipped")

// Query is the immutable configuration for one load attempt.
type Query struct {
	Endpoint             string
	Filter               string
	Blacklist            []string
	FilterByCapabilities bool
	MinScaleDenominator  *float64
	DataCustodian        string
}

// Equal compares queries structurally. The blacklist is treated as an
// unordered set and the scale threshold is compared by value.
func (q Query) Equal(other Query) bool {
	if q.Endpoint != other.Endpoint ||
		q.Filter != other.Filter ||
		q.FilterByCapabilities != other.FilterByCapabilities ||
		q.DataCustodian != other.DataCustodian {
		return false
	}

	if (q.MinScaleDenominator == nil) != (other.MinScaleDenominator == nil) {
		return false
	}

	if q.MinScaleDenominator != nil && *q.MinScaleDenominator != *other.MinScaleDenominator {
		return false
	}

	if len(q.Blacklist) != len(other.Blacklist) {
		return false
	}

	names := map[string]struct{}{}
	for _, name := range q.Blacklist {
		names[name] = struct{}{}
	}

	for _, name := range other.Blacklist {
		if _, found := names[name]; !found {
			return false
		}
	}

	return true
}

type CatalogService interface {
	Start()
	Shutdown()

	Name() string
	Endpoint() string

	Load(ctx context.Context, query Query) error
	Root() *domain.CatalogGroup
}

func NewCatalogService(ctx context.Context, log zerolog.Logger, name string, query Query, searcher ckan.Client, capabilities wms.Client) CatalogService {
	return &catalogSvc{
		ctx: ctx,
		log: log,

		name:         name,
		query:        query,
		searcher:     searcher,
		capabilities: capabilities,

		root:        &domain.CatalogGroup{Name: name},
		keepRunning: true,
	}
}

type catalogSvc struct {
	ctx context.Context
	log zerolog.Logger

	name         string
	query        Query
	searcher     ckan.Client
	capabilities wms.Client

	rootMutex sync.Mutex
	root      *domain.CatalogGroup

	stateMutex  sync.Mutex
	loading     bool
	lastApplied *Query

	keepRunning bool
}

func (svc *catalogSvc) Name() string {
	return svc.name
}

func (svc *catalogSvc) Endpoint() string {
	return svc.query.Endpoint
}

func (svc *catalogSvc) Root() *domain.CatalogGroup {
	svc.rootMutex.Lock()
	defer svc.rootMutex.Unlock()

	return svc.root
}

func (svc *catalogSvc) Start() {
	svc.log.Info().Msgf("starting catalog service %s", svc.name)
	go svc.run()
}

func (svc *catalogSvc) Shutdown() {
	svc.log.Info().Msgf("shutting down catalog service %s", svc.name)
	svc.keepRunning = false
}

// Load runs the discovery pipeline for the given query. Requests are
// admitted through the reload gate: a load that is already in flight,
// or a query equal to the last successfully applied one, returns
// ErrLoadSkipped without touching the network.
func (svc *catalogSvc) Load(ctx context.Context, query Query) error {
	if !svc.admitLoad(query) {
		return ErrLoadSkipped
	}

	err := svc.load(ctx, query)
	svc.completeLoad(err)

	return err
}

// admitLoad snapshots the query speculatively, so that an identical
// request arriving while this one is in flight is also skipped.
func (svc *catalogSvc) admitLoad(query Query) bool {
	svc.stateMutex.Lock()
	defer svc.stateMutex.Unlock()

	if svc.loading {
		return false
	}

	if svc.lastApplied != nil && svc.lastApplied.Equal(query) {
		return false
	}

	snapshot := query
	svc.lastApplied = &snapshot
	svc.loading = true

	return true
}

// completeLoad clears the loading flag regardless of outcome. On
// failure the applied query is forgotten entirely, so that a retry
// with the identical query is admitted again.
func (svc *catalogSvc) completeLoad(err error) {
	svc.stateMutex.Lock()
	defer svc.stateMutex.Unlock()

	svc.loading = false

	if err != nil {
		svc.lastApplied = nil
	}
}

func (svc *catalogSvc) load(ctx context.Context, query Query) (err error) {
	ctx, span := tracer.Start(ctx, "load-catalog")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, ctx, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, svc.log, ctx)

	records, err := svc.searcher.PackageSearch(ctx, query.Endpoint, query.Filter)
	if err != nil {
		log.Error().Err(err).Msg("package search failed")
		return fmt.Errorf("failed to search catalog at %s: %w", query.Endpoint, err)
	}

	var index wms.Index
	if query.FilterByCapabilities {
		index = wms.BuildIndex(ctx, svc.capabilities, log, serviceEndpoints(records))
	}

	marks := admissionMarks(records, index, query)
	root := assemble(svc.name, records, query, marks)

	svc.storeRoot(root)

	log.Info().Msgf("assembled %d datasets from %s", len(records), query.Endpoint)

	return nil
}

func (svc *catalogSvc) storeRoot(root *domain.CatalogGroup) {
	svc.rootMutex.Lock()
	defer svc.rootMutex.Unlock()

	svc.root = root
}

func (svc *catalogSvc) run() {
	nextRefreshTime := time.Now()

	for svc.keepRunning {
		if time.Now().After(nextRefreshTime) {
			svc.log.Info().Msgf("refreshing catalog %s", svc.name)
			err := svc.refresh()

			if err != nil {
				svc.log.Error().Err(err).Msg("failed to refresh catalog")
				// Retry every 10 seconds on error
				nextRefreshTime = time.Now().Add(10 * time.Second)
			} else {
				svc.log.Info().Msgf("refreshed catalog %s", svc.name)
				// Refresh every 5 minutes on success
				nextRefreshTime = time.Now().Add(5 * time.Minute)
			}
		}

		time.Sleep(1 * time.Second)
	}

	svc.log.Info().Msg("catalog service exiting")
}

// refresh reloads the configured query even though it has not changed,
// by forgetting the applied query before going through the gate. A load
// already in flight still wins.
func (svc *catalogSvc) refresh() error {
	svc.stateMutex.Lock()
	svc.lastApplied = nil
	svc.stateMutex.Unlock()

	err := svc.Load(svc.ctx, svc.query)
	if errors.Is(err, ErrLoadSkipped) {
		return nil
	}

	return err
}
