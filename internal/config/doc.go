// Package config provides configuration parsing for the table engine.
//
// The configuration is stored in datatable.json (JSON with comments and
// trailing commas allowed) or datatable.yaml. It selects the preference
// storage backend and sets up logging and metrics.
//
// # Configuration File Structure
//
//	{
//	  // where column/density preferences live
//	  "storage": {
//	    "backend": "postgres",
//	    "dsn": "postgres://app@localhost/app",
//	    "table": "datatable_preferences",
//	    "prefix": "admin:"
//	  },
//	  "log": {"level": "info", "format": "json"},
//	  "metrics": {"namespace": "datatable"},
//	}
//
// Environment variables override file values:
// DATATABLE_STORAGE_BACKEND, DATATABLE_STORAGE_DSN, DATATABLE_STORAGE_DIR,
// DATATABLE_STORAGE_BUCKET, DATATABLE_STORAGE_URL, DATATABLE_LOG_LEVEL,
// DATATABLE_LOG_FORMAT.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := cfg.Logger(os.Stderr)
package config
