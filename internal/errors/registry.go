package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (A001-A019)
	// ============================================

	"A001": {
		Category: CategoryConfig,
		Message:  "Config file not readable",
		Detail:   "atomctl.yaml exists but could not be read.",
	},
	"A002": {
		Category: CategoryConfig,
		Message:  "Invalid config file",
		Detail:   "atomctl.yaml is not valid YAML or has fields of the wrong type.",
	},
	"A003": {
		Category: CategoryConfig,
		Message:  "Invalid log setting",
		Detail:   "log.level must be one of debug, info, warn or error, and log.format one of text or json.",
	},
	"A004": {
		Category: CategoryConfig,
		Message:  "Invalid snapshot backend",
		Detail:   "snapshot must set either dir or s3.bucket, but not both.",
	},
	"A005": {
		Category: CategoryConfig,
		Message:  "Invalid serve setting",
		Detail:   "serve.addr must be a host:port address and serve.readTimeout must not be negative.",
	},

	// ============================================
	// Scenario Errors (A100-A139)
	// ============================================

	"A100": {
		Category: CategoryScenario,
		Message:  "Scenario file not readable",
		Detail:   "The scenario file could not be opened.",
	},
	"A101": {
		Category: CategoryScenario,
		Message:  "Invalid scenario file",
		Detail:   "The scenario file is not valid YAML or does not match the scenario schema.",
	},
	"A102": {
		Category: CategoryScenario,
		Message:  "Invalid atom declaration",
		Detail:   "Each atom needs a unique name and exactly one of value, expr or async.",
	},
	"A103": {
		Category: CategoryScenario,
		Message:  "Unknown dependency",
		Detail:   "An atom lists a dependency that is not declared, or that is declared after it.",
	},
	"A104": {
		Category: CategoryScenario,
		Message:  "Expression does not compile",
		Detail:   "An expr could not be compiled. Only the atom's deps, and prev in update steps, are in scope.",
	},
	"A105": {
		Category: CategoryScenario,
		Message:  "Unknown atom",
		Detail:   "A step or watch refers to an atom that is not declared.",
	},
	"A106": {
		Category: CategoryScenario,
		Message:  "Invalid step",
		Detail:   "Each step must have exactly one action: set, update, refresh, wait or sleep.",
	},
	"A107": {
		Category: CategoryScenario,
		Message:  "Atom is not writable",
		Detail:   "Only atoms declared with value can be set or updated.",
	},
	"A108": {
		Category: CategoryScenario,
		Message:  "Step failed",
		Detail:   "A scenario step failed while running.",
	},
	"A109": {
		Category: CategoryScenario,
		Message:  "Atom is not async",
		Detail:   "wait steps only apply to atoms declared with async.",
	},

	// ============================================
	// Snapshot Errors (A200-A219)
	// ============================================

	"A200": {
		Category: CategorySnapshot,
		Message:  "Snapshot not saved",
		Detail:   "The dehydrated registry could not be written to the snapshot backend.",
	},
	"A201": {
		Category: CategorySnapshot,
		Message:  "Snapshot not found",
		Detail:   "No snapshot exists under the given reference.",
	},
	"A202": {
		Category: CategorySnapshot,
		Message:  "Snapshot not readable",
		Detail:   "The snapshot exists but is not a valid list of dehydrated atoms.",
	},
	"A203": {
		Category: CategorySnapshot,
		Message:  "Snapshot backend not configured",
		Detail:   "Set snapshot.dir or snapshot.s3.bucket in atomctl.yaml.",
	},

	// ============================================
	// Inspect Errors (A300-A319)
	// ============================================

	"A300": {
		Category: CategoryInspect,
		Message:  "Atom not found",
		Detail:   "The inspector has no atom with this name.",
	},
	"A301": {
		Category: CategoryInspect,
		Message:  "Invalid atom value",
		Detail:   "The request body is not a JSON value the atom accepts.",
	},
	"A302": {
		Category: CategoryInspect,
		Message:  "Atom is read-only",
		Detail:   "Only state atoms can be written through the inspector.",
	},

	// ============================================
	// CLI Errors (A400-A419)
	// ============================================

	"A400": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with missing or extra arguments.",
	},
	"A401": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The inspector server stopped with an error.",
	},
}

// GetAllCodes returns all registered error codes, sorted.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
