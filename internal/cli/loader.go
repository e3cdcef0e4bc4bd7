package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/arel/internal/compiler"
)

// LoadMode selects whether LoadCatalog stops at the first error.
type LoadMode int

const (
	LoadModeFailFast   LoadMode = iota
	LoadModeCollectAll          // parse every table and query, report every error
)

// LoadResult is a parsed catalog and where it came from.
type LoadResult struct {
	Catalog   *compiler.Catalog
	CUEValue  cue.Value
	FileCount int
}

// LoadError is a coded catalog loading error, positioned when CUE knows
// where it happened.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadCatalog loads a catalog from a directory holding one CUE package or
// from a single .cue, .yaml or .yml file. A result is returned alongside
// parse errors so callers can report what did load.
func LoadCatalog(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing catalog: %v", err)}}
	}

	var (
		value cue.Value
		files int
	)
	if info.IsDir() {
		value, files, err = loadDir(path)
	} else {
		value, err = compiler.LoadValue(path)
		files = 1
	}
	if err != nil {
		return nil, []error{toLoadError(err)}
	}

	result := &LoadResult{
		Catalog:   &compiler.Catalog{},
		CUEValue:  value,
		FileCount: files,
	}

	var errs []error
	// collect records err and reports whether loading should stop.
	collect := func(err error) bool {
		errs = append(errs, toLoadError(err))
		return mode == LoadModeFailFast
	}

	stopped := eachField(value, "tables", collect, func(name string, v cue.Value) error {
		table, err := compiler.ParseTable(name, v)
		if err == nil {
			result.Catalog.Tables = append(result.Catalog.Tables, table)
		}
		return err
	})
	if !stopped {
		stopped = eachField(value, "queries", collect, func(name string, v cue.Value) error {
			query, err := compiler.ParseQuery(name, v)
			if err == nil {
				result.Catalog.Queries = append(result.Catalog.Queries, *query)
			}
			return err
		})
	}
	if stopped {
		return result, errs
	}

	if len(result.Catalog.Queries) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoQueries, Message: "no queries found in catalog"})
	}

	return result, errs
}

// eachField calls parse for every field of the struct at path, in order.
// Errors go to collect; eachField stops early, and returns true, once
// collect asks it to.
func eachField(value cue.Value, path string, collect func(error) bool, parse func(string, cue.Value) error) bool {
	v := value.LookupPath(cue.ParsePath(path))
	if !v.Exists() {
		return false
	}

	iter, err := v.Fields()
	if err != nil {
		return collect(err)
	}
	for iter.Next() {
		if err := parse(iter.Label(), iter.Value()); err != nil && collect(err) {
			return true
		}
	}
	return false
}

// loadDir builds the CUE package in dir.
func loadDir(dir string) (cue.Value, int, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, 0, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	return value, len(cueFiles), nil
}

// FindCUEFiles returns the .cue files directly inside dir. Like the CUE
// loader, subdirectories are not part of the package.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// toLoadError codes err, keeping a compiler error's position.
func toLoadError(err error) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	if errors.Is(err, os.ErrNotExist) {
		return &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// Error codes shared by every command.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Database open or query failed
	ErrCodeNoQueries   = "E009" // Catalog declares no queries

	// Definition parse errors. Semantic checks use the compiler's E1xx codes.
	ErrCodeUnsupported  = "E200" // Unsupported catalog file
	ErrCodeMissingFrom  = "E201" // Query without from
	ErrCodeInvalidTable = "E202" // Malformed table declaration
	ErrCodeInvalidStep  = "E203" // Malformed query step
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "file":
		return ErrCodeUnsupported
	case field == "from":
		return ErrCodeMissingFrom
	case field == "queries":
		return ErrCodeNoQueries
	case strings.HasPrefix(field, "tables."):
		return ErrCodeInvalidTable
	case strings.HasPrefix(field, "queries.") && strings.Contains(field, ".steps"):
		return ErrCodeInvalidStep
	default:
		return ErrCodeGeneric
	}
}
