package ckan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jqnatividad/nationalmap/internal/pkg/domain"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/urls"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	searchPath = "/api/3/action/package_search"

	// A single large page. Catalog pagination is out of scope.
	searchRowLimit = 100000

	searchCacheHint = "1d"
)

// Package is one dataset entry from a package_search response.
type Package struct {
	Title        string        `json:"title"`
	Notes        string        `json:"notes"`
	LicenseURL   string        `json:"license_url,omitempty"`
	GeoCoverage  string        `json:"geo_coverage,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
	Groups       []Group       `json:"groups"`
	Resources    []Resource    `json:"resources"`
}

type Organization struct {
	Title string `json:"title"`
}

type Group struct {
	DisplayName string `json:"display_name"`
}

type Resource struct {
	Format string `json:"format"`
	WMSURL string `json:"wms_url,omitempty"`
	URL    string `json:"url,omitempty"`
}

// ServiceURL prefers the dedicated wms_url over the generic resource url.
func (r Resource) ServiceURL() string {
	if r.WMSURL != "" {
		return r.WMSURL
	}

	return r.URL
}

type Client interface {
	PackageSearch(ctx context.Context, endpoint, filterQuery string) ([]Package, error)
}

func NewClient(policy urls.Policy, log zerolog.Logger) Client {
	return &ckanClient{
		policy: policy,
		log:    log,
	}
}

type ckanClient struct {
	policy urls.Policy
	log    zerolog.Logger
}

func (c *ckanClient) PackageSearch(ctx context.Context, endpoint, filterQuery string) ([]Package, error) {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	searchURL := fmt.Sprintf(
		"%s%s?rows=%d&fq=%s",
		strings.TrimSuffix(endpoint, "/"), searchPath, searchRowLimit, url.QueryEscape(filterQuery),
	)
	searchURL = urls.ProxyIfNeeded(c.policy, searchURL, searchCacheHint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to create http request")
		return nil, &domain.NetworkError{URL: searchURL, Err: err}
	}

	response, err := httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("package search request failed")
		return nil, &domain.NetworkError{URL: searchURL, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected response code %d", response.StatusCode)
		c.log.Error().Err(err).Msg("package search request failed")
		return nil, &domain.NetworkError{URL: searchURL, Err: err}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to read response body")
		return nil, &domain.NetworkError{URL: searchURL, Err: err}
	}

	searchResponse := packageSearchResponse{}

	err = json.Unmarshal(body, &searchResponse)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to unmarshal package search response")
		return nil, &domain.ParseError{URL: searchURL, Err: err}
	}

	return searchResponse.Result.Results, nil
}

type packageSearchResponse struct {
	Result struct {
		Results []Package `json:"results"`
	} `json:"result"`
}
