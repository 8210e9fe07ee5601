package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jqnatividad/nationalmap/internal/pkg/domain"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/ckan"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/wms"
	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

func TestLoadIsSkippedWhenQueryIsUnchanged(t *testing.T) {
	is := is.New(t)

	var searchCount int32
	server := countingServer(&searchCount, searchResultWithService("https://maps.example.com/wms?layers=coastline"))
	defer server.Close()

	svc, query := newTestService(server.URL)

	err := svc.Load(context.Background(), query)
	is.NoErr(err)

	err = svc.Load(context.Background(), query)
	is.Equal(err, ErrLoadSkipped)

	is.Equal(atomic.LoadInt32(&searchCount), int32(1)) // no second search request
}

func TestChangedQueryIsAdmitted(t *testing.T) {
	is := is.New(t)

	var searchCount int32
	server := countingServer(&searchCount, searchResultWithService("https://maps.example.com/wms?layers=coastline"))
	defer server.Close()

	svc, query := newTestService(server.URL)

	is.NoErr(svc.Load(context.Background(), query))

	query.Filter = "+(res_format:wms) +(organization:geoscience)"
	is.NoErr(svc.Load(context.Background(), query))

	is.Equal(atomic.LoadInt32(&searchCount), int32(2))
}

func TestFailedLoadForgetsAppliedQuery(t *testing.T) {
	is := is.New(t)

	var searchCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&searchCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc, query := newTestService(server.URL)

	err := svc.Load(context.Background(), query)
	is.True(err != nil)

	// the identical query has to be retried, not skipped
	err = svc.Load(context.Background(), query)
	is.True(err != nil)
	is.True(err != ErrLoadSkipped)

	is.Equal(atomic.LoadInt32(&searchCount), int32(2))
}

func TestOnlyWmsResourcesWithUsableURLsAreAdmitted(t *testing.T) {
	is := is.New(t)

	server := respondWith(`{"result": {"results": [
		{"title": "Coastline", "notes": "", "groups": [], "resources": [
			{"format": "wfs", "url": "https://maps.example.com/wfs?layers=coastline"},
			{"format": "wms"},
			{"format": "WMS", "wms_url": "https://maps.example.com/wms?layers=coastline"}
		]}
	]}}`)
	defer server.Close()

	svc, query := newTestService(server.URL)
	is.NoErr(svc.Load(context.Background(), query))

	root := svc.Root()
	is.Equal(len(root.Members), 1) // only the wms resource with a URL survives
}

func TestCapabilityFilteringAgainstMinimumScale(t *testing.T) {
	scale := func(v float64) *float64 { return &v }

	cases := []struct {
		name     string
		minScale *float64
		admitted bool
	}{
		{"minimum above declared value rejects", scale(10000), false},
		{"minimum below declared value admits", scale(1000), true},
		{"no minimum admits regardless", nil, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			is := is.New(t)

			capsServer := respondWith(capabilitiesXMLWithScale("coastline", 5000))
			defer capsServer.Close()

			searchServer := respondWith(searchResultWithService(capsServer.URL + "/wms?layers=coastline"))
			defer searchServer.Close()

			svc, query := newTestService(searchServer.URL)
			query.FilterByCapabilities = true
			query.MinScaleDenominator = c.minScale

			is.NoErr(svc.Load(context.Background(), query))

			root := svc.Root()
			if c.admitted {
				is.Equal(len(root.Members), 1)
			} else {
				is.Equal(len(root.Members), 0)
			}
		})
	}
}

func TestLayerAbsentFromCapabilitiesIsRejected(t *testing.T) {
	is := is.New(t)

	capsServer := respondWith(capabilitiesXMLWithScale("some-other-layer", 5000))
	defer capsServer.Close()

	searchServer := respondWith(searchResultWithService(capsServer.URL + "/wms?layers=coastline"))
	defer searchServer.Close()

	svc, query := newTestService(searchServer.URL)
	query.FilterByCapabilities = true

	is.NoErr(svc.Load(context.Background(), query))
	is.Equal(len(svc.Root().Members), 0)
}

func TestCapabilityFetchFailureIsLocalToItsEndpoint(t *testing.T) {
	is := is.New(t)

	workingCaps := respondWith(capabilitiesXMLWithScale("coastline", 5000))
	defer workingCaps.Close()

	brokenCaps := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer brokenCaps.Close()

	searchServer := respondWith(fmt.Sprintf(`{"result": {"results": [
		{"title": "Coastline", "notes": "", "groups": [], "resources": [
			{"format": "wms", "wms_url": "%s/wms?layers=coastline"}
		]},
		{"title": "Rainfall", "notes": "", "groups": [], "resources": [
			{"format": "wms", "wms_url": "%s/wms?layers=rainfall"}
		]}
	]}}`, workingCaps.URL, brokenCaps.URL))
	defer searchServer.Close()

	svc, query := newTestService(searchServer.URL)
	query.FilterByCapabilities = true

	is.NoErr(svc.Load(context.Background(), query)) // the load as a whole still succeeds

	root := svc.Root()
	is.Equal(len(root.Members), 1)
	is.Equal(root.Members[0].MemberName(), "Coastline")
}

func TestRecordsSharingAGroupMergeIntoOne(t *testing.T) {
	is := is.New(t)

	server := respondWith(`{"result": {"results": [
		{"title": "Coastline", "notes": "", "groups": [{"display_name": "Coastal"}], "resources": [
			{"format": "wms", "wms_url": "https://maps.example.com/wms?layers=coastline"}
		]},
		{"title": "Tide Gauges", "notes": "", "groups": [{"display_name": "Coastal"}], "resources": [
			{"format": "wms", "wms_url": "https://maps.example.com/wms?layers=tides"}
		]}
	]}}`)
	defer server.Close()

	svc, query := newTestService(server.URL)
	is.NoErr(svc.Load(context.Background(), query))

	root := svc.Root()
	is.Equal(len(root.Members), 1)

	group, ok := root.Members[0].(*domain.CatalogGroup)
	is.True(ok)
	is.Equal(group.Name, "Coastal")
	is.Equal(len(group.Members), 2)
}

func TestQueryEqualityIsStructural(t *testing.T) {
	is := is.New(t)

	scale := float64(10000)
	sameScale := float64(10000)

	a := Query{Endpoint: "https://data.example.com", Blacklist: []string{"x", "y"}, MinScaleDenominator: &scale}
	b := Query{Endpoint: "https://data.example.com", Blacklist: []string{"y", "x"}, MinScaleDenominator: &sameScale}

	is.True(a.Equal(b)) // same content behind different references

	b.Blacklist = []string{"x", "z"}
	is.True(!a.Equal(b))
}

func newTestService(endpoint string) (CatalogService, Query) {
	searcher := ckan.NewClient(nil, zerolog.Logger{})
	capabilities := wms.NewClient(nil, zerolog.Logger{})

	query := Query{
		Endpoint: endpoint,
		Filter:   "+(res_format:wms)",
	}

	return NewCatalogService(context.Background(), zerolog.Logger{}, "test", query, searcher, capabilities), query
}

func countingServer(counter *int32, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(counter, 1)
		w.Write([]byte(body))
	}))
}

func respondWith(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
}

func searchResultWithService(serviceURL string) string {
	return fmt.Sprintf(`{"result": {"results": [
		{"title": "Coastline", "notes": "", "groups": [], "resources": [
			{"format": "wms", "wms_url": "%s"}
		]}
	]}}`, serviceURL)
}

func capabilitiesXMLWithScale(layerName string, maxScaleDenominator float64) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<WMS_Capabilities version="1.3.0">
	<Capability>
		<Layer>
			<Layer>
				<Name>%s</Name>
				<MaxScaleDenominator>%.0f</MaxScaleDenominator>
			</Layer>
		</Layer>
	</Capability>
</WMS_Capabilities>`, layerName, maxScaleDenominator)
}
