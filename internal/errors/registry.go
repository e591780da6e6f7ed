package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Contract violations (C001-C009)
	// ============================================

	"C001": {
		Category:   CategoryContract,
		Message:    "Listener must be a function",
		Detail:     "A nil listener was passed to AddListener. The call was ignored and no handle was issued.",
		Suggestion: "Pass a non-nil func(value T, source Observable[T]).",
	},
	"C002": {
		Category:   CategoryContract,
		Message:    "Limiter must be a function",
		Detail:     "A nil limiter was installed. The previous limiter stays in place.",
		Suggestion: "Pass a func(candidate T, source Observable[T]) (T, bool); return false to veto a write.",
	},
	"C003": {
		Category: CategoryContract,
		Message:  "Source is not a cell",
		Detail:   "An aggregate was given a nil source. The source list was left unchanged.",
	},
	"C004": {
		Category: CategoryContract,
		Message:  "Reducer must be a function",
		Detail:   "A nil read or write reducer was installed. The previous reducer stays in place.",
	},
	"C005": {
		Category: CategoryContract,
		Message:  "Mapper must be a function",
		Detail:   "A nil read or write mapper was installed on a proxy. The previous mapper stays in place.",
	},
	"C006": {
		Category: CategoryContract,
		Message:  "Proxy target is not a cell",
		Detail:   "A proxy was pointed at a nil target. The previous target stays in place.",
	},

	// ============================================
	// Listener failures (C010-C019)
	// ============================================

	"C010": {
		Category: CategoryListener,
		Message:  "Listener panicked",
		Detail:   "A listener panicked while being notified. Remaining listeners were still notified.",
	},

	// ============================================
	// Lifecycle failures (C020-C029)
	// ============================================

	"C020": {
		Category: CategoryLifecycle,
		Message:  "Demand hook panicked",
		Detail:   "The demand hook panicked while the first listener was added or the last one removed. The listener change still completed.",
	},
	"C021": {
		Category: CategoryLifecycle,
		Message:  "Remote binding panicked",
		Detail:   "A remote binding function panicked. A pull failure rejects the pending fetch.",
	},

	// ============================================
	// Fetch failures (C030-C039)
	// ============================================

	"C030": {
		Category: CategoryFetch,
		Message:  "Remote fetch failed",
		Detail:   "The remote value could not be retrieved. All waiters of the fetch were rejected.",
	},

	// ============================================
	// Configuration errors (C040-C049)
	// ============================================

	"C040": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The configuration file contains an invalid value.",
	},
	"C041": {
		Category:   CategoryConfig,
		Message:    "Configuration parse error",
		Detail:     "The configuration file is not valid YAML.",
		Suggestion: "Check indentation and quoting in cellctl.yaml.",
	},
	"C042": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Run 'cellctl init' to write a starter cellctl.yaml.",
	},

	// ============================================
	// CLI errors (C050-C059)
	// ============================================

	"C050": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was given arguments it cannot use.",
	},
	"C051": {
		Category: CategoryCLI,
		Message:  "Telemetry export failed",
		Detail:   "Metrics or spans could not be written.",
	},
}

// Lookup returns the template for an error code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
