package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/arel/internal/compiler"
	"github.com/roach88/arel/internal/session"
	"github.com/roach88/arel/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Database string // optional database to read undeclared table columns from
}

// CompiledQuery is one query of a compiled catalog.
type CompiledQuery struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

// CompilationResult holds the compiled queries in declaration order.
type CompilationResult struct {
	Queries []CompiledQuery `json:"queries"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <catalog>",
		Short: "Compile catalog queries to SQL",
		Long: `Compile the queries of a catalog to SQL SELECT statements.

The catalog is a directory of CUE files or a single .cue, .yaml or .yml
file. Tables must declare their columns unless --db names a database to
read them from.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to read table columns from")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadCatalog(path, LoadModeCollectAll)
	if loadResult == nil {
		return commandError(formatter, toLoadError(loadErrors[0]))
	}

	formatter.VerboseLog("Read %d catalog file(s) from %s", loadResult.FileCount, path)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	if verrs := compiler.Validate(loadResult.Catalog); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, v := range verrs {
			errs[i] = &LoadError{Code: v.Code, Message: fmt.Sprintf("%s: %s", v.Field, v.Message)}
		}
		return outputCompileErrors(formatter, errs)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var binder compiler.Binder = compiler.StaticBinder{}
	if opts.Database != "" {
		st, err := store.OpenExisting(opts.Database)
		if err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeDatabase, Message: err.Error()})
		}
		defer st.Close()
		binder = session.New(st)
	}

	compiled, err := compiler.Build(ctx, loadResult.Catalog, binder)
	if err != nil {
		return outputCompileErrors(formatter, []error{err})
	}

	result := &CompilationResult{Queries: make([]CompiledQuery, 0, len(compiled))}
	for _, c := range compiled {
		formatter.VerboseLog("Compiling query: %s", c.Name)
		sql, err := c.Relation.ToSQL()
		if err != nil {
			return outputCompileErrors(formatter, []error{fmt.Errorf("query %s: %w", c.Name, err)})
		}
		result.Queries = append(result.Queries, CompiledQuery{Name: c.Name, SQL: sql})
	}

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return commandError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)})
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d query(s)\n\n", len(result.Queries))

	for _, q := range result.Queries {
		fmt.Fprintf(formatter.Writer, "-- %s\n%s;\n\n", q.Name, q.SQL)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote compiled queries to %s\n", outputFile)
	}

	return nil
}

// commandError reports an error that stopped the command before any
// query was checked.
func commandError(formatter *OutputFormatter, le *LoadError) error {
	_ = formatter.Error(le.Code, le.Message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", le.Code, le.Message))
}

// outputCompileErrors reports every error of a failed compilation. A
// catalog that cannot compile is a command error.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	failed := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))

	coded := make([]*LoadError, len(errs))
	for i, err := range errs {
		coded[i] = toLoadError(err)
		coded[i].Message = strings.TrimSpace(coded[i].Message)
	}

	if formatter.JSON() {
		report := make([]CLIError, len(coded))
		for i, le := range coded {
			report[i] = CLIError{Code: le.Code, Message: le.Message}
		}
		if err := formatter.Failure(report[0], report); err != nil {
			return err
		}
		return failed
	}

	w := formatter.Writer
	fmt.Fprint(w, "✗ Compilation failed\n\n")
	for _, le := range coded {
		if le.Pos.IsValid() {
			fmt.Fprintf(w, "%s:%d:%d\n", le.Pos.Filename(), le.Pos.Line(), le.Pos.Column())
		}
		fmt.Fprintf(w, "  %s: %s\n\n", le.Code, le.Message)
	}
	return failed
}

// writeResultToFile writes the compilation result to a file as indented JSON.
func writeResultToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling queries: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
