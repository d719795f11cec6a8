// Package category holds the closed set of community post categories shared
// with the backend, plus the client-only "all" filter.
package category

import (
	"fmt"
	"net/url"
	"strings"
)

// Slug identifies a post category. The zero value is not valid; use All for
// "no filter".
type Slug string

const (
	WasteRecycling    Slug = "waste_recycling"
	UpcyclingDIY      Slug = "upcycling_diy"
	SustainableLiving Slug = "sustainable_living"
	FoodComposting    Slug = "food_composting"
	GreenTech         Slug = "green_tech"
	CommunityEvents   Slug = "community_events"

	// All never leaves the client; it means the category parameter is omitted.
	All Slug = "all"
)

// QueryParam is the list endpoint's filter parameter.
const QueryParam = "category"

type Category struct {
	Slug  Slug
	Label string
}

// Order matches the backend's choice list.
var categories = []Category{
	{Slug: WasteRecycling, Label: "Waste & Recycling"},
	{Slug: UpcyclingDIY, Label: "Upcycling & DIY"},
	{Slug: SustainableLiving, Label: "Sustainable Living Tips"},
	{Slug: FoodComposting, Label: "Food & Composting"},
	{Slug: GreenTech, Label: "Green Tech & Innovation"},
	{Slug: CommunityEvents, Label: "Community & Events"},
}

// Categories returns the concrete categories in display order. "all" is not included.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Parse turns user input into a Slug. Empty input selects All.
func Parse(s string) (Slug, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return All, nil
	}
	slug := Slug(s)
	if !slug.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return slug, nil
}

// Valid reports whether s is one of the concrete slugs or All.
func (s Slug) Valid() bool {
	return s == All || s.Concrete()
}

// Concrete reports whether s names a real server-side category.
func (s Slug) Concrete() bool {
	for _, c := range categories {
		if c.Slug == s {
			return true
		}
	}
	return false
}

func (s Slug) IsAll() bool {
	return s == All
}

// Label returns the human readable name, "All" for All and the raw slug for
// anything unknown.
func (s Slug) Label() string {
	if s == All {
		return "All"
	}
	for _, c := range categories {
		if c.Slug == s {
			return c.Label
		}
	}
	return string(s)
}

// Query returns the filter as query parameters, or nil when s is All.
func (s Slug) Query() url.Values {
	if s == All || s == "" {
		return nil
	}
	return url.Values{QueryParam: []string{string(s)}}
}

func (s Slug) String() string {
	return string(s)
}
