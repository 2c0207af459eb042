// Package output provides the writers that report the result of a booking
// run.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jakopako/kursbot/internal/types"
)

// Writer reports a finished run to a specific output.
type Writer interface {
	Write(report *types.RunReport) error
}

// WriterConfig defines the parameters of a writer.
type WriterConfig struct {
	Type     WriterType `yaml:"type" env:"KURSBOT_WRITER_TYPE" env-default:"stdout"`
	FileDir  string     `yaml:"filedir"`
	Uri      string     `yaml:"uri"`
	User     string     `yaml:"user" env:"KURSBOT_WRITER_USER"`         // we want to be able to pass credentials via env vars
	Password string     `yaml:"password" env:"KURSBOT_WRITER_PASSWORD"` // we want to be able to pass credentials via env vars
}

// WriterType encapsulates the type of a writer
// See below constants for possible types
type WriterType string

const (
	STDOUT_WRITER_TYPE WriterType = "stdout"
	FILE_WRITER_TYPE   WriterType = "file"
	API_WRITER_TYPE    WriterType = "api"
)

// NewWriter returns a new writer depending on the writer type
func NewWriter(wc *WriterConfig) (Writer, error) {
	switch wc.Type {
	case STDOUT_WRITER_TYPE, "":
		return NewStdoutWriter(wc), nil
	case FILE_WRITER_TYPE:
		return NewFileWriter(wc)
	case API_WRITER_TYPE:
		return NewAPIWriter(wc)
	default:
		return nil, fmt.Errorf("writer of type '%s' not implemented", wc.Type)
	}
}

// encodeReport renders the report as indented json. HTML characters are
// kept as they are since the report contains selectors and page markers.
func encodeReport(report *types.RunReport) ([]byte, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(report); err != nil {
		return nil, fmt.Errorf("error while encoding report: %w", err)
	}
	var indentBuffer bytes.Buffer
	if err := json.Indent(&indentBuffer, buffer.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("error while indenting json: %w", err)
	}
	return indentBuffer.Bytes(), nil
}
