package models

import (
	"errors"
	"fmt"
	"strings"
)

// ProjectType is one of the closed set of project categories the studio quotes.
type ProjectType string

const (
	ProjectLandingPage ProjectType = "Landing Page"
	ProjectShowcase    ProjectType = "Site Vitrine"
	ProjectECommerce   ProjectType = "E-commerce"
	ProjectCustom      ProjectType = "Projet Sur Mesure"
)

// ProjectTypes lists every accepted category in display order.
var ProjectTypes = []ProjectType{
	ProjectLandingPage,
	ProjectShowcase,
	ProjectECommerce,
	ProjectCustom,
}

// Valid reports whether p belongs to the closed category set.
func (p ProjectType) Valid() bool {
	for _, t := range ProjectTypes {
		if p == t {
			return true
		}
	}
	return false
}

// Suggestion is the structured output of the model for one description.
type Suggestion struct {
	ProjectType ProjectType `json:"project_type"`
	PageList    []string    `json:"page_list"`
	Explanation string      `json:"explanation"`
}

// ErrInvalidSuggestion is returned by Validate for any shape or category mismatch.
var ErrInvalidSuggestion = errors.New("invalid suggestion")

// Validate checks the category and page list. A suggestion that fails here
// must never reach the cache.
func (s Suggestion) Validate() error {
	if !s.ProjectType.Valid() {
		return fmt.Errorf("%w: unknown project type %q", ErrInvalidSuggestion, s.ProjectType)
	}
	if len(s.PageList) == 0 {
		return fmt.Errorf("%w: empty page list", ErrInvalidSuggestion)
	}
	for i, p := range s.PageList {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("%w: blank page name at index %d", ErrInvalidSuggestion, i)
		}
	}
	if strings.TrimSpace(s.Explanation) == "" {
		return fmt.Errorf("%w: empty explanation", ErrInvalidSuggestion)
	}
	return nil
}

// PageCount is the number of suggested pages.
func (s Suggestion) PageCount() int {
	return len(s.PageList)
}
