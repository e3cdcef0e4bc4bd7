package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds the persistent flags shared by every command.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	SeqURL  string // logs are also shipped to this Seq server when set
}

// ValidFormats are the accepted --format values.
var ValidFormats = []string{"text", "json"}

const rootLong = `Compose SELECT queries from an immutable relational algebra.

Queries are declared in CUE or YAML catalogs, compiled to SQL, run against
SQLite databases and checked by conformance scenarios.`

// NewRootCommand creates the arel command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	root := &cobra.Command{
		Use:               "arel",
		Short:             "arel - relational algebra for SQL",
		Long:              rootLong,
		PersistentPreRunE: func(*cobra.Command, []string) error { return opts.check() },
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.SeqURL, "seq-url", "", "also ship logs to the Seq server at this URL")

	for _, sub := range []func(*RootOptions) *cobra.Command{
		NewCompileCommand,
		NewValidateCommand,
		NewRunCommand,
		NewTestCommand,
	} {
		root.AddCommand(sub(opts))
	}
	return root
}

func (o *RootOptions) check() error {
	if !isValidFormat(o.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, ValidFormats)
	}
	return nil
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
