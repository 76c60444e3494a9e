package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/actionstore/internal/backend"
	"github.com/roach88/actionstore/internal/config"
)

// inputError marks a file that could not be read or decoded.
type inputError struct {
	path string
	err  error
}

func (e *inputError) Error() string { return fmt.Sprintf("%s: %v", e.path, e.err) }
func (e *inputError) Unwrap() error { return e.err }

// configError marks a configuration that could not be loaded.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

// readInput reads path ("-" for stdin) and returns it as JSON. Files ending
// in .yaml or .yml are YAML; other input is taken as JSON when it parses as
// JSON and as YAML otherwise.
func readInput(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		path = "stdin"
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, &inputError{path: path, err: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
	default:
		if json.Valid(data) {
			return data, nil
		}
	}

	out, err := yamlToJSON(data)
	if err != nil {
		return nil, &inputError{path: path, err: err}
	}
	return out, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("empty document")
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}

// openBackend loads configuration and opens the backend it names. The
// --backend flag overrides the configured one.
func (o *RootOptions) openBackend(ctx context.Context, f *OutputFormatter) (*backend.Handle, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, &configError{err: err}
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
		if err := cfg.Validate(); err != nil {
			return nil, &configError{err: err}
		}
	}
	f.VerboseLog("Opening %s backend", cfg.Backend)
	return backend.Open(ctx, cfg)
}
