package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/arel/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // glob matched against scenario file names
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarizes a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <catalog-dir> <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios against fresh in-memory databases.

Each scenario seeds a database, runs its flow of catalog queries and
writes, then checks step expectations, the statement trace and the final
table state. Scenario catalog paths are resolved against <catalog-dir>.
When golden/<name>.golden exists next to a scenario, its trace and step
results must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  arel test ./catalog ./scenarios
  arel test ./catalog ./scenarios --filter "user*"
  arel test ./catalog ./scenarios --update
  arel test ./catalog ./scenarios --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, catalogDir, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(catalogDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("catalog directory not found: %s", catalogDir))
	}
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	formatter := newFormatter(opts.RootOptions, cmd)
	if len(files) == 0 {
		if formatter.JSON() {
			return outputTestJSON(formatter, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenario(ctx, file, catalogDir, opts)
		if !formatter.JSON() {
			printScenario(formatter, sr)
		}

		result.Scenarios = append(result.Scenarios, sr.ScenarioResult)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter, result)
}

// findScenarioFiles walks dir for .yaml and .yml files whose base name
// matches filter.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// scenarioRun is a scenario result plus the text-only detail printed for it.
type scenarioRun struct {
	ScenarioResult
	note string // e.g. "golden updated"
	kind string // "Load error", "Execution error", ...; empty for assertion failures
}

func failedRun(name, kind string, err error) scenarioRun {
	return scenarioRun{
		ScenarioResult: ScenarioResult{Name: name, Errors: []string{err.Error()}},
		kind:           kind,
	}
}

// runScenario loads and runs one scenario file, then checks or rewrites
// its golden file.
func runScenario(ctx context.Context, file, catalogDir string, opts *TestOptions) scenarioRun {
	scenario, err := harness.LoadScenarioWithBasePath(file, catalogDir)
	if err != nil {
		return failedRun(filepath.Base(file), "Load error", err)
	}

	result, err := harness.RunContext(ctx, scenario)
	if err != nil {
		return failedRun(scenario.Name, "Execution error", err)
	}

	goldenPath := goldenFilePath(file)
	snapshot := snapshotOf(scenario, result)

	if opts.Update {
		if err := writeGolden(snapshot, goldenPath); err != nil {
			return failedRun(scenario.Name, "Golden update error", err)
		}
		return scenarioRun{
			ScenarioResult: ScenarioResult{Name: scenario.Name, Pass: true},
			note:           "golden updated",
		}
	}

	match, err := matchGolden(snapshot, goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// No golden file: the scenario's own assertions decide.
	case err != nil:
		return failedRun(scenario.Name, "Golden comparison error", err)
	case !match:
		return failedRun(scenario.Name, "Golden file mismatch",
			errors.New("trace does not match golden file (run with --update to regenerate)"))
	}

	return scenarioRun{ScenarioResult: ScenarioResult{
		Name:   scenario.Name,
		Pass:   result.Pass,
		Errors: result.Errors,
	}}
}

func printScenario(f *OutputFormatter, sr scenarioRun) {
	w := f.Writer
	if sr.Pass {
		if sr.note != "" {
			fmt.Fprintf(w, "✓ %s (%s)\n", sr.Name, sr.note)
		} else {
			fmt.Fprintf(w, "✓ %s\n", sr.Name)
		}
		return
	}

	fmt.Fprintf(w, "✗ %s\n", sr.Name)
	for _, e := range sr.Errors {
		if sr.kind != "" {
			fmt.Fprintf(w, "  %s: %s\n", sr.kind, e)
		} else {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

// goldenFilePath returns golden/<name>.golden next to the scenario file.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func snapshotOf(scenario *harness.Scenario, result *harness.Result) *harness.TraceSnapshot {
	return &harness.TraceSnapshot{
		ScenarioName: scenario.Name,
		Trace:        result.Trace,
		Steps:        result.Steps,
	}
}

// writeGolden writes the snapshot to path, creating its directory.
func writeGolden(snapshot *harness.TraceSnapshot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}

	data, err := snapshot.Marshal()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}

// matchGolden compares the snapshot with the golden file at path. A
// missing file is reported as fs.ErrNotExist.
func matchGolden(snapshot *harness.TraceSnapshot, path string) (bool, error) {
	golden, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	current, err := snapshot.Marshal()
	if err != nil {
		return false, fmt.Errorf("marshal snapshot: %w", err)
	}
	return bytes.Equal(golden, current), nil
}

func outputTestJSON(f *OutputFormatter, result TestResult) error {
	if result.Failed == 0 {
		return f.Success(result)
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if err := f.Failure(CLIError{Code: "E_TEST_FAILED", Message: msg}, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

func outputTestText(f *OutputFormatter, result TestResult) error {
	w := f.Writer

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
