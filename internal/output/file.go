package output

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/jakopako/kursbot/internal/types"
)

// FileWriter represents a writer that writes the report to a json file
type FileWriter struct {
	*WriterConfig
	logger *slog.Logger
}

// NewFileWriter returns a new FileWriter
func NewFileWriter(wc *WriterConfig) (*FileWriter, error) {
	if wc.FileDir == "" {
		return nil, errors.New("filedir needs to be specified for the FileWriter")
	}

	if err := os.MkdirAll(wc.FileDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", wc.FileDir, err)
	}

	return &FileWriter{
		WriterConfig: wc,
		logger:       slog.With(slog.String("writer", string(FILE_WRITER_TYPE))),
	}, nil
}

func reportFilename(report *types.RunReport) string {
	if report.RunID == "" {
		return "report.json"
	}
	return fmt.Sprintf("report_%s.json", report.RunID)
}

func (w *FileWriter) Write(report *types.RunReport) error {
	data, err := encodeReport(report)
	if err != nil {
		return err
	}
	filepath := path.Join(w.FileDir, reportFilename(report))
	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("error while writing report to file: %w", err)
	}
	w.logger.Info(fmt.Sprintf("wrote report of run %s to file %s", report.RunID, filepath))
	return nil
}
