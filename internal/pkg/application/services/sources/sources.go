package sources

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// Source is one configured catalog to discover datasets from.
type Source struct {
	Name                 string   `yaml:"name"`
	Endpoint             string   `yaml:"endpoint"`
	Filter               string   `yaml:"filter"`
	Blacklist            []string `yaml:"blacklist"`
	FilterByCapabilities bool     `yaml:"filterByCapabilities"`
	MinScaleDenominator  *float64 `yaml:"minScaleDenominator"`
	DataCustodian        string   `yaml:"dataCustodian"`
}

type Registry interface {
	Sources() []Source
	Get(name string) (*Source, error)
}

func NewRegistry(input io.Reader) (Registry, error) {
	if input == nil {
		return nil, errors.New("no catalog sources configuration supplied")
	}

	buf, err := io.ReadAll(input)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog sources configuration: %w", err)
	}

	cfg := struct {
		Catalogs []Source `yaml:"catalogs"`
	}{}

	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog sources configuration: %w", err)
	}

	for _, source := range cfg.Catalogs {
		if source.Name == "" || source.Endpoint == "" {
			return nil, fmt.Errorf("catalog sources need both a name and an endpoint")
		}
	}

	return &registry{sources: cfg.Catalogs}, nil
}

type registry struct {
	sources []Source
}

func (r *registry) Sources() []Source {
	return r.sources
}

func (r *registry) Get(name string) (*Source, error) {
	for _, source := range r.sources {
		if source.Name == name {
			return &source, nil
		}
	}

	return nil, fmt.Errorf("no catalog source named %s", name)
}
