package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/arel/internal/arel"
	"github.com/roach88/arel/internal/compiler"
	"github.com/roach88/arel/internal/session"
	"github.com/roach88/arel/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Queries  []string // queries to run; all when empty
	Journal  string   // file to write the statement journal to, as YAML

	// IDGenerator allows overriding the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator session.IDGenerator
}

// QueryResult is the outcome of one query.
type QueryResult struct {
	Name    string   `json:"name"`
	SQL     string   `json:"sql"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RunResult holds every query result in run order.
type RunResult struct {
	Queries []QueryResult `json:"queries"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <catalog>",
		Short: "Run catalog queries against a database",
		Long: `Build a catalog against a SQLite database and run its queries.

Undeclared table columns are read from the database. Every statement is
logged; --journal also writes them to a YAML file.

Example:
  arel run --db ./app.db ./catalog
  arel run --db ./app.db ./catalog.yaml --query adults --journal run.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueries(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringSliceVarP(&opts.Queries, "query", "q", nil, "query to run (repeatable; default all)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "write the statement journal to this YAML file")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQueries(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger, closeLogs := newLogger(cmd.ErrOrStderr(), opts.Verbose, opts.SeqURL)
	defer closeLogs()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("loading catalog", "path", path)
	cat, err := loadCatalogFailFast(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	if verrs := compiler.Validate(cat); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return NewExitError(ExitCommandError, "invalid catalog:\n"+strings.Join(msgs, "\n"))
	}

	logger.Debug("opening database", "path", opts.Database)
	st, err := store.OpenExisting(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ids := opts.IDGenerator
	if ids == nil {
		ids = session.UUIDv7Generator{}
	}
	journal := session.NewJournal()
	eng := session.New(st,
		session.WithLogger(logger),
		session.WithIDGenerator(ids),
		session.WithJournal(journal),
	)

	compiled, err := compiler.Build(ctx, cat, eng)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build catalog", err)
	}

	selected, err := selectQueries(compiled, opts.Queries)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --query", err)
	}

	result := RunResult{Queries: make([]QueryResult, 0, len(selected))}
	var runErr error
	for _, c := range selected {
		qr, err := runQuery(ctx, c)
		if err != nil {
			runErr = WrapExitError(ExitFailure, fmt.Sprintf("query %s failed", c.Name), err)
			break
		}
		logger.Info("query ran", "query", c.Name, "rows", len(qr.Rows))
		result.Queries = append(result.Queries, qr)
	}

	if opts.Journal != "" {
		if err := writeJournal(journal, opts.Journal); err != nil {
			return WrapExitError(ExitCommandError, "failed to write journal", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return writeRunText(cmd.OutOrStdout(), result)
}

// loadCatalogFailFast loads a catalog and returns its first error.
func loadCatalogFailFast(path string) (*compiler.Catalog, error) {
	loadResult, loadErrors := LoadCatalog(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	return loadResult.Catalog, nil
}

// selectQueries picks the named queries in the order given, or all of
// them when names is empty.
func selectQueries(compiled []compiler.Compiled, names []string) ([]compiler.Compiled, error) {
	if len(names) == 0 {
		return compiled, nil
	}

	out := make([]compiler.Compiled, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(compiled, func(c compiler.Compiled) bool { return c.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown query %q", name)
		}
		out = append(out, compiled[i])
	}
	return out, nil
}

// runQuery reads a compiled query. Row values follow the relation's
// attribute order.
func runQuery(ctx context.Context, c compiler.Compiled) (QueryResult, error) {
	sql, err := c.Relation.ToSQL()
	if err != nil {
		return QueryResult{}, err
	}

	rows, err := c.Relation.Call(ctx, nil)
	if err != nil {
		return QueryResult{}, err
	}

	qr := QueryResult{
		Name:    c.Name,
		SQL:     sql,
		Columns: columnNames(c.Relation.Attributes()),
		Rows:    make([][]any, len(rows)),
	}
	for i, row := range rows {
		qr.Rows[i] = row.Values()
	}
	return qr, nil
}

func columnNames(attrs []arel.Attribute) []string {
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.AliasOrName()
	}
	return names
}

// writeRunText prints each query's rows as an aligned table.
func writeRunText(w io.Writer, result RunResult) error {
	for _, q := range result.Queries {
		fmt.Fprintf(w, "-- %s (%d row(s))\n", q.Name, len(q.Rows))

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(q.Columns, "\t"))
		for _, row := range q.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatValue(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

// writeJournal writes the journal entries to path as YAML.
func writeJournal(journal *session.Journal, path string) error {
	data, err := yaml.Marshal(journal.Entries())
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	return nil
}
