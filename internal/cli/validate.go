package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/arel/internal/compiler"
)

// ValidationResult is the validate command's report.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Tables  int                        `json:"tables"`
	Queries int                        `json:"queries"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog>",
		Short: "Validate a catalog without building it",
		Long: `Validate a query catalog without binding it to a database.

Parses every table and query, then checks operators, bounds, column
references, join labels and query cycles. The catalog is a directory of
CUE files or a single .cue, .yaml or .yml file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadCatalog(path, LoadModeCollectAll)
	if loadResult == nil {
		// Nothing loaded: a bad path or an unreadable package.
		return commandError(formatter, toLoadError(loadErrors[0]))
	}

	formatter.VerboseLog("Read %d catalog file(s) from %s", loadResult.FileCount, path)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			})
		}
	}

	// Definitions that parsed are still checked, so one run reports
	// parse and semantic errors together.
	cat := loadResult.Catalog
	for _, q := range cat.Queries {
		formatter.VerboseLog("Validating query: %s", q.Name)
	}
	if len(cat.Queries) > 0 {
		validationErrors = append(validationErrors, compiler.Validate(cat)...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, ValidationResult{
		Valid:   true,
		Tables:  len(cat.Tables),
		Queries: len(cat.Queries),
	})
}

// lineOf is the error's line, or 0 when CUE gave no position.
func lineOf(err *LoadError) int {
	if err.Pos.IsValid() {
		return err.Pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Catalog valid: %d table(s), %d query(s)\n", result.Tables, result.Queries)
	return nil
}

// outputValidationErrors reports every validation error. Validation
// failures exit with ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failed := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.JSON() {
		first := CLIError{Code: errs[0].Code, Message: errs[0].Message}
		if err := formatter.Failure(first, ValidationResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
		return failed
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(w, "line %d\n", err.Line)
		}
		fmt.Fprintf(w, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failed
}
