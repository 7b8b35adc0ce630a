// Package testutil provides common utility functions for testing.
package testutil

import (
	"underwrite/internal/engine"
)

// FindScenario finds a projection result by scenario name.
// Returns nil when no result carries the name.
func FindScenario(results []*engine.Result, name string) *engine.Result {
	for _, result := range results {
		if result != nil && result.ScenarioName == name {
			return result
		}
	}
	return nil
}

// RowForYear finds the projection row for a calendar year. Returns a pointer
// into the result's row slice so callers can inspect or mutate it, or nil
// when the year is outside the projection horizon.
func RowForYear(result *engine.Result, year int) *engine.Row {
	if result == nil {
		return nil
	}
	for i := range result.Rows {
		if result.Rows[i].Year == year {
			return &result.Rows[i]
		}
	}
	return nil
}
