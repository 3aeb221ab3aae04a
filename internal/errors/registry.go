package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Setup Errors (DT001-DT009)
	// ============================================

	"DT001": {
		Category: CategorySetup,
		Message:  "Cross-page selection requires a row identity function",
		Detail:   "Selections that span pages are stored by row id. Positional ids change between pages, so GetRowID must be provided.",
	},
	"DT002": {
		Category: CategorySetup,
		Message:  "Unknown column reference",
		Detail:   "A feature configuration names a column id that no column definition declares.",
	},
	"DT003": {
		Category: CategorySetup,
		Message:  "Duplicate column id",
		Detail:   "Column ids key every per-column preference and must be unique.",
	},

	// ============================================
	// Storage Errors (DT010-DT019)
	// ============================================

	"DT010": {
		Category: CategoryStorage,
		Message:  "Preference read failed",
		Detail:   "The stored preference could not be read. The feature continues with its defaults.",
	},
	"DT011": {
		Category: CategoryStorage,
		Message:  "Preference write failed",
		Detail:   "The preference could not be persisted. The in-memory value stays authoritative for this session.",
	},
	"DT012": {
		Category: CategoryStorage,
		Message:  "Preference remove failed",
		Detail:   "The stored preference could not be removed.",
	},
	"DT013": {
		Category: CategoryStorage,
		Message:  "Preference envelope is malformed",
		Detail:   "The stored bytes are not a valid {schemaVersion, updatedAt, value} envelope.",
	},
	"DT014": {
		Category: CategoryStorage,
		Message:  "Preference storage is closed",
		Detail:   "An operation was attempted on a storage backend after Close.",
	},
	"DT015": {
		Category: CategoryStorage,
		Message:  "Preference migration failed",
		Detail:   "The stored preference could not be migrated to the current schema version. The feature continues with its defaults.",
	},

	// ============================================
	// Fetch Errors (DT020-DT029)
	// ============================================

	"DT020": {
		Category: CategoryFetch,
		Message:  "Fetching matching row ids failed",
		Detail:   "The server-side select-all loader returned an error. The selection was left unchanged.",
	},
	"DT021": {
		Category: CategoryFetch,
		Message:  "Loading child rows failed",
		Detail:   "The lazy child loader returned an error. The row may be expanded again to retry.",
	},
	"DT022": {
		Category: CategoryFetch,
		Message:  "Row reorder failed",
		Detail:   "The reorder callback returned an error. Reconciling the optimistic move is up to the caller.",
	},

	// ============================================
	// Config Errors (DT030-DT039)
	// ============================================

	"DT030": {
		Category: CategoryConfig,
		Message:  "Failed to read config file",
		Detail:   "The engine configuration file could not be read or parsed.",
	},
	"DT031": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The engine configuration contains invalid values.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
