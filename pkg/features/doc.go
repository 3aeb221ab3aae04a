// Package features composes the table features into one ordered list.
//
// Compose derives column metadata from the column definitions, builds every
// feature from one Config and returns them in a fixed order:
//
//	core, selection, columnVisibility, columnSizing, density, columnPinning,
//	tree (or expansion), dragSort
//
// The host merges the runtimes with table.Merge in that order, so when two
// features patch the same option the later one wins.
//
// Each feature lives in its own sub-package and can also be used alone:
//
//   - selection: page-local and cross-page row selection
//   - visibility, sizing, density: persisted preferences
//   - pinning, expansion: in-memory column pins and expanded rows
//   - tree: hierarchy with lazy child loading
//   - dragsort: nesting-aware drag reorder
package features
