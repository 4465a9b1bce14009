package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently so lifecycle logs can be queried uniformly.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Lifecycle
	KeyInstanceID = "instance_id" // App instance identifier
	KeyStage      = "stage"       // Lifecycle stage name
	KeyEvent      = "event"       // Hook event name
	KeyState      = "state"       // Lifecycle state
	KeyRoot       = "root"        // Project root directory

	// Modules
	KeyKind   = "kind"   // Module category: model, router, action, ...
	KeyModule = "module" // Module or artifact name
	KeyHook   = "hook"   // Hook name
	KeySource = "source" // Declaring file of a module
	KeyOrder  = "order"  // Module order
	KeyCount  = "count"  // Number of items processed

	// Database
	KeyClient    = "client"    // Database client: sqlite, postgres, mysql
	KeyDatabase  = "database"  // Database name or file
	KeyMigration = "migration" // Migration name
	KeyBatch     = "batch"     // Migration batch number

	// HTTP
	KeyAddr       = "addr"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyRequestID  = "request_id"
	KeyRemoteAddr = "remote_addr"
	KeyBytes      = "bytes"

	// Timing and errors
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// InstanceID creates an instance_id attribute
func InstanceID(id string) slog.Attr {
	return slog.String(KeyInstanceID, id)
}

// StageAttr creates a stage attribute
func StageAttr(name string) slog.Attr {
	return slog.String(KeyStage, name)
}

// Event creates an event attribute
func Event(name string) slog.Attr {
	return slog.String(KeyEvent, name)
}

// Kind creates a kind attribute
func Kind(kind string) slog.Attr {
	return slog.String(KeyKind, kind)
}

// Module creates a module attribute
func Module(name string) slog.Attr {
	return slog.String(KeyModule, name)
}

// Migration creates a migration attribute
func Migration(name string) slog.Attr {
	return slog.String(KeyMigration, name)
}

// Path creates a path attribute
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// DurationMs creates a duration_ms attribute
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Since creates a duration_ms attribute measured from start
func Since(start time.Time) slog.Attr {
	return DurationMs(Duration(start))
}

// Err creates an error attribute. Nil errors produce an empty attribute
// that handlers drop.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
