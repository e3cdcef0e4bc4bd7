package harness

import "github.com/roach88/arel/internal/session"

// StepResult records what one flow step observed.
type StepResult struct {
	Step  int    `json:"step"`
	Label string `json:"label"` // "query adults", "insert users", ...

	// Rows holds the rows a query step read, keyed by column name.
	Rows []map[string]any `json:"rows,omitempty"`

	// Affected is the number of rows a write step changed.
	Affected int64 `json:"affected,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace holds every statement the scenario ran, in sequence order.
	Trace []session.Entry `json:"trace"`

	// Steps holds one entry per flow step.
	Steps []StepResult `json:"steps"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []session.Entry{},
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
