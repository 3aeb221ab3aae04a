// Package selection implements page-local and cross-page row selection.
//
// In page mode the selection belongs to the rows on screen and is cleared
// whenever the page, page size, sort or filters change.
//
// In cross-page mode the selection is a set of row ids in one of two forms:
//
//   - include: exactly these ids are selected (bounded by MaxSelection)
//   - exclude: every matching row except these ids is selected
//
// Exclude mode is how "select all matching" works without enumerating an
// unbounded result. Cross-page selection survives paging and sorting and is
// cleared only when the filters change content.
//
// The selection the primitive renders (RowSelectionState) is always derived
// from the id set, so a checkbox can never show a row as selected that the
// set does not contain.
package selection
