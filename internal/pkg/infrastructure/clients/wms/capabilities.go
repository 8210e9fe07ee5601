package wms

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"

	"github.com/jqnatividad/nationalmap/internal/pkg/domain"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/urls"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	capabilitiesQuery     = "service=WMS&request=GetCapabilities"
	capabilitiesCacheHint = "1d"
)

// Layer is one node in a service's advertised layer tree. A nil
// MaxScaleDenominator means the layer declares no scale constraint.
type Layer struct {
	Name                string
	MaxScaleDenominator *float64
	Children            []Layer
}

type Client interface {
	GetCapabilities(ctx context.Context, endpoint string) ([]Layer, error)
}

func NewClient(policy urls.Policy, log zerolog.Logger) Client {
	return &wmsClient{
		policy: policy,
		log:    log,
	}
}

type wmsClient struct {
	policy urls.Policy
	log    zerolog.Logger
}

func (c *wmsClient) GetCapabilities(ctx context.Context, endpoint string) ([]Layer, error) {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	requestURL := fmt.Sprintf("%s?%s", endpoint, capabilitiesQuery)
	requestURL = urls.ProxyIfNeeded(c.policy, requestURL, capabilitiesCacheHint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to create http request")
		return nil, &domain.NetworkError{URL: requestURL, Err: err}
	}

	response, err := httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("capabilities request failed")
		return nil, &domain.NetworkError{URL: requestURL, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected response code %d", response.StatusCode)
		c.log.Error().Err(err).Msg("capabilities request failed")
		return nil, &domain.NetworkError{URL: requestURL, Err: err}
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to read response body")
		return nil, &domain.NetworkError{URL: requestURL, Err: err}
	}

	doc := capabilitiesDocument{}

	err = xml.Unmarshal(body, &doc)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to unmarshal capabilities document")
		return nil, &domain.ParseError{URL: requestURL, Err: err}
	}

	layers := make([]Layer, 0, len(doc.Capability.Layers))
	for _, element := range doc.Capability.Layers {
		layers = append(layers, element.toLayer())
	}

	return layers, nil
}

// The document root is left unconstrained so that both WMS_Capabilities
// and the older WMT_MS_Capabilities roots decode. Repeated Layer
// elements always decode into a slice, regardless of their count.
type capabilitiesDocument struct {
	Capability struct {
		Layers []layerElement `xml:"Layer"`
	} `xml:"Capability"`
}

type layerElement struct {
	Name                string         `xml:"Name"`
	MaxScaleDenominator *float64       `xml:"MaxScaleDenominator"`
	Layers              []layerElement `xml:"Layer"`
}

func (el layerElement) toLayer() Layer {
	layer := Layer{
		Name:                el.Name,
		MaxScaleDenominator: el.MaxScaleDenominator,
	}

	for _, child := range el.Layers {
		layer.Children = append(layer.Children, child.toLayer())
	}

	return layer
}
