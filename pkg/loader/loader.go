// Package loader reads workflow definitions from YAML or JSON documents.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/dukex/flowhost/pkg/models"
)

var (
	ErrEmptyDocument   = errors.New("definition document is empty")
	ErrInvalidDocument = errors.New("invalid definition document")
)

// Extensions lists the file extensions LoadDir picks up.
var Extensions = []string{".yaml", ".yml", ".json"}

var schemaLoader = gojsonschema.NewGoLoader(documentSchema)

// Parse decodes a definition document. JSON documents are read as YAML.
// The document is checked against the document schema and the resulting
// workflow against the graph rules.
func Parse(data []byte) (*models.Workflow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	wf := doc.workflow()
	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return wf, nil
}

func Read(r io.Reader) (*models.Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition: %w", err)
	}

	return Parse(data)
}

func LoadFile(path string) (*models.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	wf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return wf, nil
}

// LoadDir loads every definition document directly inside dir, in file name order.
func LoadDir(dir string) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var (
		workflows []*models.Workflow
		errs      error
	)

	for _, entry := range entries {
		if entry.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			continue
		}

		wf, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			errs = multierr.Append(errs, err)

			continue
		}

		workflows = append(workflows, wf)
	}

	return workflows, errs
}

func validateSchema(raw any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(messages, "; "))
}
