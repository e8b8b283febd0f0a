package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/san-kum/motorkit/internal/sim"
)

type ExportData struct {
	Run     RunMetadata  `json:"run"`
	Samples []sim.Sample `json:"samples"`
}

// ExportJSON writes a run's metadata and samples as one JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return errors.Wrap(encoder.Encode(ExportData{Run: *meta, Samples: samples}), "encode export")
}

// ExportCSV copies a run's samples to path.
func (s *Store) ExportCSV(path, runID string) error {
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.Close()
	return WriteCSV(file, samples)
}
