package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"
)

// LoadFile reads and parses a catalog from a single .cue, .yaml or .yml
// file.
func LoadFile(path string) (*Catalog, error) {
	v, err := LoadValue(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(v)
}

// LoadValue builds the CUE value of a catalog file. YAML files are
// extracted to CUE first, so positions in errors point into the YAML
// source.
func LoadValue(path string) (cue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("read catalog: %w", err)
	}

	ctx := cuecontext.New()
	var v cue.Value
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		v = ctx.CompileBytes(data, cue.Filename(path))
	case ".yaml", ".yml":
		f, err := yaml.Extract(path, data)
		if err != nil {
			return cue.Value{}, formatCUEError(err)
		}
		v = ctx.BuildFile(f)
	default:
		return cue.Value{}, &CompileError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported catalog file %s: want .cue, .yaml or .yml", path),
		}
	}

	if err := v.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return v, nil
}
