package writeline

import (
	"io"
	"os"
	"sync"

	"github.com/dukex/flowhost/pkg/models"
	"github.com/dukex/flowhost/pkg/protocol"
)

// WriteLineFactory creates WriteLine activities sharing one writer.
type WriteLineFactory struct {
	out io.Writer
}

// NewWriteLineFactory creates a factory writing to out, or to stdout when out is nil.
func NewWriteLineFactory(out io.Writer) protocol.ActivityFactory {
	if out == nil {
		out = os.Stdout
	}

	return &WriteLineFactory{out: &lockedWriter{w: out}}
}

func (f *WriteLineFactory) Create(activity *models.Activity) (protocol.Activity, error) {
	return NewWriteLine(activity, f.out), nil
}

func (f *WriteLineFactory) ID() string {
	return Type
}

func (f *WriteLineFactory) Name() string {
	return "Write Line"
}

func (f *WriteLineFactory) Description() string {
	return "Writes a line of text, evaluated against the workflow variables"
}

func (f *WriteLineFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			FieldText: map[string]any{
				"type":        "string",
				"description": "Text to write",
				"examples":    []string{"Hello {{.name}}"},
			},
		},
		"required": []string{FieldText},
	}
}

// Instances are processed concurrently; lines must not interleave.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}
