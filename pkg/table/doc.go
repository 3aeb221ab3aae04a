// Package table defines the types shared by the table feature engine.
//
// A headless table primitive (row model, visible columns, state patching) is
// assumed to exist on the host side. Features never talk to it directly; each
// feature contributes a Runtime: a patch over Options, Actions and Activity.
// The host concatenates runtimes in instantiation order and merges them with
// Merge, where a later runtime overrides an earlier one field by field.
//
//	runtimes := []table.Runtime[User]{core, selection.Runtime(), visibility.Runtime()}
//	merged := table.Merge(runtimes...)
//	merged.Actions.ClearSelection()
package table
