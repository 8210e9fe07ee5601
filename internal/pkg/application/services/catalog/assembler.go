package catalog

import (
	"fmt"
	"strings"

	"github.com/jqnatividad/nationalmap/internal/pkg/domain"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/clients/ckan"
	"github.com/jqnatividad/nationalmap/internal/pkg/infrastructure/urls"
)

// assemble builds the output tree from raw search records and their
// admission marks. Blacklisted records contribute nothing at all, and
// blacklisted group names are never created. A record that declares no
// groups attaches its items directly to the root.
func assemble(name string, records []ckan.Package, query Query, marks map[resourceKey]bool) *domain.CatalogGroup {
	root := &domain.CatalogGroup{Name: name}

	blacklist := map[string]struct{}{}
	for _, banned := range query.Blacklist {
		blacklist[banned] = struct{}{}
	}

	for recordIndex, record := range records {
		if _, banned := blacklist[record.Title]; banned {
			continue
		}

		description := buildDescription(record)
		bbox := parseCoverage(record.GeoCoverage)
		custodian := dataCustodian(record, query)

		groupNames := declaredGroupNames(record)

		for resourceIndex, res := range record.Resources {
			if !marks[resourceKey{recordIndex, resourceIndex}] {
				continue
			}

			serviceURL, layerName := urls.Normalize(res.ServiceURL())

			item := &domain.CatalogItem{
				Name:          record.Title,
				Description:   description,
				URL:           serviceURL,
				LayerName:     layerName,
				BBox:          bbox,
				DataCustodian: custodian,
			}

			if len(groupNames) == 0 {
				root.Add(item)
				continue
			}

			for _, groupName := range groupNames {
				if _, banned := blacklist[groupName]; banned {
					continue
				}

				root.Group(groupName).Add(item)
			}
		}
	}

	root.Sort()

	return root
}

func buildDescription(record ckan.Package) string {
	description := strings.ReplaceAll(record.Notes, "\n", "<br/>")

	if record.LicenseURL != "" {
		description += fmt.Sprintf("<br/>[Licence](%s)", record.LicenseURL)
	}

	return description
}

// parseCoverage returns nil for malformed coverage strings. The record
// survives without an extent, a bad bounding box never fails a load.
func parseCoverage(coverage string) *domain.BoundingBox {
	if coverage == "" {
		return nil
	}

	bbox, err := domain.ParseBoundingBox(coverage)
	if err != nil {
		return nil
	}

	return bbox
}

// An explicit custodian on the query wins over the record's own
// organization title.
func dataCustodian(record ckan.Package, query Query) string {
	if query.DataCustodian != "" {
		return query.DataCustodian
	}

	if record.Organization != nil {
		return record.Organization.Title
	}

	return ""
}

func declaredGroupNames(record ckan.Package) []string {
	names := []string{}

	for _, group := range record.Groups {
		if group.DisplayName != "" {
			names = append(names, group.DisplayName)
		}
	}

	return names
}
