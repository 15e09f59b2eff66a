// Package catalog holds the studio routine library and the picker that
// loads a chosen routine's video metadata.
package catalog

import (
	"errors"
	"fmt"

	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// Sentinel errors
var (
	ErrRoutineNotFound = errors.New("routine not found")
	ErrUnknownStyle    = errors.New("unknown style")
)

// Catalog is an immutable, in-memory routine library
type Catalog struct {
	routines []models.Routine
	byID     map[string]int
}

// New builds a catalog after validating the records
func New(routines []models.Routine) (*Catalog, error) {
	if err := Validate(routines); err != nil {
		return nil, err
	}

	c := &Catalog{
		routines: append([]models.Routine(nil), routines...),
		byID:     make(map[string]int, len(routines)),
	}
	for i, r := range c.routines {
		c.byID[r.ID] = i
	}
	return c, nil
}

// Default returns the built-in studio library
func Default() *Catalog {
	c, err := New(defaultRoutines)
	if err != nil {
		panic(fmt.Sprintf("built-in routine catalog is invalid: %v", err))
	}
	return c
}

// Validate checks id uniqueness and enum membership
func Validate(routines []models.Routine) error {
	seen := make(map[string]bool, len(routines))
	for _, r := range routines {
		if r.ID == "" {
			return fmt.Errorf("routine %q has no id", r.Name)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate routine id %q", r.ID)
		}
		seen[r.ID] = true

		if !r.Style.IsValid() {
			return fmt.Errorf("routine %q has unknown style %q", r.ID, r.Style)
		}
		if !r.Energy.IsValid() {
			return fmt.Errorf("routine %q has unknown energy %q", r.ID, r.Energy)
		}
	}
	return nil
}

// All returns every routine in catalog order
func (c *Catalog) All() []models.Routine {
	return append([]models.Routine(nil), c.routines...)
}

// Len returns the number of routines
func (c *Catalog) Len() int {
	return len(c.routines)
}

// ByID looks up a routine
func (c *Catalog) ByID(id string) (*models.Routine, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoutineNotFound, id)
	}
	r := c.routines[i]
	return &r, nil
}

// ByStyle returns the routines filed under style, in catalog order
func (c *Catalog) ByStyle(style models.DanceStyle) []models.Routine {
	var out []models.Routine
	for _, r := range c.routines {
		if r.Style == style {
			out = append(out, r)
		}
	}
	return out
}

// GroupByStyle groups every routine under its style
func (c *Catalog) GroupByStyle() map[models.DanceStyle][]models.Routine {
	groups := make(map[models.DanceStyle][]models.Routine)
	for _, r := range c.routines {
		groups[r.Style] = append(groups[r.Style], r)
	}
	return groups
}

// Styles returns every declared style in display order, populated or not
func (c *Catalog) Styles() []models.DanceStyle {
	return append([]models.DanceStyle(nil), models.DanceStyles...)
}
