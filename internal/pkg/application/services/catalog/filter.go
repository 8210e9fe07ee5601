package catalog

import (
	"strings"

	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/ckan"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/wms"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/urls"
)

const wmsFormat = "wms"

// resourceKey identifies a resource by its position in the search
// result, so that admission decisions can be kept next to the raw
// records instead of being written into them.
type resourceKey struct {
	record   int
	resource int
}

func isServiceResource(res ckan.Resource) bool {
	return strings.EqualFold(res.Format, wmsFormat) && res.ServiceURL() != ""
}

// serviceEndpoints collects the normalized endpoint of every wms
// resource in the result set. Duplicates are fine, the capability
// index deduplicates before fetching.
func serviceEndpoints(records []ckan.Package) []string {
	endpoints := []string{}

	for _, record := range records {
		for _, res := range record.Resources {
			if !isServiceResource(res) {
				continue
			}

			endpoint, _ := urls.Normalize(res.ServiceURL())
			endpoints = append(endpoints, endpoint)
		}
	}

	return endpoints
}

// admissionMarks produces the admit or reject decision for every
// resource in the result set, keyed by resource identity.
func admissionMarks(records []ckan.Package, index wms.Index, query Query) map[resourceKey]bool {
	marks := map[resourceKey]bool{}

	for recordIndex, record := range records {
		for resourceIndex, res := range record.Resources {
			marks[resourceKey{recordIndex, resourceIndex}] = admit(res, index, query)
		}
	}

	return marks
}

// admit decides whether a single resource survives filtering. With
// capability filtering disabled only the format and URL checks apply.
// With it enabled the resource additionally needs an extracted layer
// name, that layer has to appear in its endpoint's capability entry,
// and the layer's declared max scale denominator (when it declares
// one) has to reach the configured minimum (when one is configured).
func admit(res ckan.Resource, index wms.Index, query Query) bool {
	if !isServiceResource(res) {
		return false
	}

	if !query.FilterByCapabilities {
		return true
	}

	endpoint, layerName := urls.Normalize(res.ServiceURL())
	if layerName == "" {
		return false
	}

	entry, found := index.Entry(endpoint, layerName)
	if !found {
		return false
	}

	if query.MinScaleDenominator == nil || entry.MaxScaleDenominator == nil {
		return true
	}

	return *entry.MaxScaleDenominator >= *query.MinScaleDenominator
}
