package domain

import (
	"testing"

	"github.com/matryer/is"
)

func TestParseBoundingBox(t *testing.T) {
	is := is.New(t)

	bbox, err := ParseBoundingBox("10,-20,30,-5")

	is.NoErr(err)
	is.Equal(*bbox, BoundingBox{West: 10, South: -20, East: 30, North: -5})
}

func TestParseBoundingBoxRequiresFourParts(t *testing.T) {
	is := is.New(t)

	_, err := ParseBoundingBox("10,-20,30")
	is.True(err != nil)

	_, err = ParseBoundingBox("10,-20,30,-5,7")
	is.True(err != nil)
}

func TestParseBoundingBoxRequiresNumericParts(t *testing.T) {
	is := is.New(t)

	_, err := ParseBoundingBox("10,-20,east,-5")
	is.True(err != nil)
}

func TestGroupReusesSubgroupsByExactName(t *testing.T) {
	is := is.New(t)

	root := &CatalogGroup{}

	coastal := root.Group("Coastal")
	coastal.Add(&CatalogItem{Name: "Coastline"})

	again := root.Group("Coastal")
	again.Add(&CatalogItem{Name: "Tide Gauges"})

	is.Equal(len(root.Members), 1)
	is.Equal(len(coastal.Members), 2)

	// names are case sensitive, so a different casing is a new group
	root.Group("coastal")
	is.Equal(len(root.Members), 2)
}

func TestSortOrdersMembersCaseInsensitively(t *testing.T) {
	is := is.New(t)

	root := &CatalogGroup{}
	root.Group("Zeta")
	root.Group("alpha")
	root.Group("Beta")

	root.Sort()

	is.Equal(root.Members[0].MemberName(), "alpha")
	is.Equal(root.Members[1].MemberName(), "Beta")
	is.Equal(root.Members[2].MemberName(), "Zeta")
}

func TestSortBreaksTiesOnOriginalCase(t *testing.T) {
	is := is.New(t)

	root := &CatalogGroup{}
	root.Group("coastal")
	root.Group("Coastal")

	root.Sort()

	is.Equal(root.Members[0].MemberName(), "Coastal")
	is.Equal(root.Members[1].MemberName(), "coastal")
}

func TestSortRecursesIntoSubgroups(t *testing.T) {
	is := is.New(t)

	root := &CatalogGroup{}
	group := root.Group("Coastal")
	group.Add(&CatalogItem{Name: "Tide Gauges"})
	group.Add(&CatalogItem{Name: "Coastline"})

	root.Sort()

	is.Equal(group.Members[0].MemberName(), "Coastline")
	is.Equal(group.Members[1].MemberName(), "Tide Gauges")
}
