package domain

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// BoundingBox is a geographic extent in degrees.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// ParseBoundingBox parses a "west,south,east,north" coverage string.
// Exactly four comma separated decimal parts are required.
func ParseBoundingBox(coverage string) (*BoundingBox, error) {
	parts := strings.Split(coverage, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("coverage %q does not have four parts", coverage)
	}

	bounds := [4]float64{}

	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("coverage %q is not numeric: %w", coverage, err)
		}
		bounds[i] = value
	}

	return &BoundingBox{West: bounds[0], South: bounds[1], East: bounds[2], North: bounds[3]}, nil
}

// CatalogMember is a node in the output tree, either a CatalogGroup
// or a CatalogItem.
type CatalogMember interface {
	MemberName() string
}

// CatalogItem is a single admitted map service layer.
type CatalogItem struct {
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	URL           string       `json:"url"`
	LayerName     string       `json:"layerName"`
	BBox          *BoundingBox `json:"rectangle,omitempty"`
	DataCustodian string       `json:"dataCustodian,omitempty"`
}

func (item *CatalogItem) MemberName() string {
	return item.Name
}

// CatalogGroup is a named collection of items and subgroups.
type CatalogGroup struct {
	Name    string          `json:"name"`
	Members []CatalogMember `json:"members"`
}

func (g *CatalogGroup) MemberName() string {
	return g.Name
}

func (g *CatalogGroup) Add(member CatalogMember) {
	g.Members = append(g.Members, member)
}

// Group returns the subgroup with exactly the given name, creating
// and attaching a new one if none exists. Names are case sensitive
// and the first group created for a name is reused.
func (g *CatalogGroup) Group(name string) *CatalogGroup {
	for _, member := range g.Members {
		if sub, ok := member.(*CatalogGroup); ok && sub.Name == name {
			return sub
		}
	}

	sub := &CatalogGroup{Name: name}
	g.Members = append(g.Members, sub)
	return sub
}

// Sort orders the group's members by case insensitive name in ascending
// order, breaking ties on the original case. Subgroups are sorted
// independently, each over its own members.
func (g *CatalogGroup) Sort() {
	slices.SortFunc(g.Members, func(a, b CatalogMember) bool {
		loweredA := strings.ToLower(a.MemberName())
		loweredB := strings.ToLower(b.MemberName())

		if loweredA != loweredB {
			return loweredA < loweredB
		}

		return a.MemberName() < b.MemberName()
	})

	for _, member := range g.Members {
		if sub, ok := member.(*CatalogGroup); ok {
			sub.Sort()
		}
	}
}
