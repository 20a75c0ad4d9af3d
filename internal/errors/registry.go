package errors

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Configuration errors (E100-E119)

	"E100": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No compose.json was found in the directory or any parent.",
	},
	"E101": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "compose.json could not be parsed.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Configuration write failed",
		Detail:   "compose.json could not be written.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Configuration file already exists",
		Detail:   "compose.json is already present in the target directory.",
	},

	// CLI errors (E140-E159)

	"E140": {
		Category: CategoryCLI,
		Message:  "Invalid flag value",
		Detail:   "A command line flag has an unusable value.",
	},
	"E141": {
		Category: CategoryCLI,
		Message:  "Unsupported trace exporter",
		Detail:   "The trace exporter must be \"stdout\" or \"none\".",
	},
	"E142": {
		Category: CategoryCLI,
		Message:  "Devtools server failed",
		Detail:   "The devtools HTTP server stopped with an error.",
	},

	// Runtime errors (E160-E179)

	"E160": {
		Category: CategoryRuntime,
		Message:  "Benchmark failed",
		Detail:   "The reactive graph reported an error while benchmarking.",
	},
	"E161": {
		Category: CategoryRuntime,
		Message:  "Demo failed",
		Detail:   "The demo event loop stopped with an error.",
	},
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
