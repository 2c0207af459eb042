package output

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jakopako/kursbot/internal/types"
)

// APIWriter posts the report to a http endpoint, e.g. a chat webhook or a
// small status service.
type APIWriter struct {
	*WriterConfig
	client *http.Client
	logger *slog.Logger
}

// NewAPIWriter returns a new APIWriter
func NewAPIWriter(wc *WriterConfig) (*APIWriter, error) {
	if wc.Uri == "" {
		return nil, errors.New("uri needs to be specified for the APIWriter")
	}
	return &APIWriter{
		WriterConfig: wc,
		client: &http.Client{
			Timeout: time.Second * 60,
		},
		logger: slog.With(slog.String("writer", string(API_WRITER_TYPE))),
	}, nil
}

func (w *APIWriter) Write(report *types.RunReport) error {
	data, err := encodeReport(report)
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", w.Uri, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("error while creating post request: %w", err)
	}
	req.Header = map[string][]string{
		"Content-Type": {"application/json"},
	}
	if w.User != "" {
		req.SetBasicAuth(w.User, w.Password)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Debug(fmt.Sprintf("post request body %s", data))
		return fmt.Errorf("error while sending post request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("error while reading post request response: %w", err)
		}
		return fmt.Errorf("error while posting report. Status Code: %d Response: %s", resp.StatusCode, body)
	}
	w.logger.Info(fmt.Sprintf("successfully posted report of run %s", report.RunID))
	return nil
}
