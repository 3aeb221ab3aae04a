// Package errors provides coded, structured errors for the table engine.
//
// Every error carries a code (e.g. "DT001") that maps to a registered
// template with a category, a short message and a longer explanation.
//
// # Categories
//
//   - setup: misconfiguration detected while building features (fatal)
//   - storage: preference persistence failures (degrade to defaults)
//   - fetch: failures of caller-supplied async loaders
//   - config: engine configuration file problems
//
// # Usage
//
//	if cfg.Mode == selection.ModeCrossPage && cfg.GetRowID == nil {
//	    return nil, errors.New("DT001").
//	        WithSuggestion("Set GetRowID so selections survive page changes")
//	}
//
// Errors from this package support errors.Is against a code template:
//
//	errors.Is(err, errors.New("DT001")) // true for any DT001 error
package errors
