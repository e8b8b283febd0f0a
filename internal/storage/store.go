package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/san-kum/motorkit/internal/config"
	"github.com/san-kum/motorkit/internal/sim"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

var sampleHeader = []string{
	"time_ms", "position", "velocity", "estimated", "measured",
	"target", "output", "requested", "applied",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return errors.Wrap(os.MkdirAll(s.baseDir, 0755), "create run store")
}

type RunMetadata struct {
	ID              string             `json:"id"`
	Plant           string             `json:"plant"`
	Controller      string             `json:"controller"`
	Integrator      string             `json:"integrator"`
	Timestamp       time.Time          `json:"timestamp"`
	DurationMs      uint32             `json:"duration_ms"`
	ControlPeriodMs uint32             `json:"control_period_ms"`
	SlewPeriodMs    uint32             `json:"slew_period_ms"`
	Slew            float64            `json:"slew"`
	Gains           map[string]float64 `json:"gains"`
	Schedule        []sim.Setpoint     `json:"schedule"`
	Steps           int                `json:"steps"`
	Metrics         map[string]float64 `json:"metrics"`
}

// Save writes a run directory holding metadata.json and samples.csv and
// returns the run id.
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%s_%d", cfg.Plant, cfg.Controller, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", errors.Wrap(err, "create run dir")
	}

	meta := RunMetadata{
		ID:              runID,
		Plant:           cfg.Plant,
		Controller:      cfg.Controller,
		Integrator:      cfg.Integrator,
		Timestamp:       now,
		DurationMs:      cfg.Run.DurationMs,
		ControlPeriodMs: cfg.Run.ControlPeriodMs,
		SlewPeriodMs:    cfg.Run.SlewPeriodMs,
		Slew:            cfg.Slew,
		Gains:           cfg.ControllerParams(),
		Schedule:        cfg.Run.Schedule,
		Steps:           result.StepsTaken,
		Metrics:         result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", errors.Wrap(err, "create metadata")
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", errors.Wrap(err, "encode metadata")
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return "", errors.Wrap(err, "create samples")
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result.Samples); err != nil {
		return "", err
	}
	return runID, nil
}

// WriteCSV writes samples with a header row.
func WriteCSV(w io.Writer, samples []sim.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sampleHeader); err != nil {
		return errors.Wrap(err, "write header")
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, s := range samples {
		row := []string{
			strconv.FormatUint(uint64(s.TimeMs), 10),
			f(s.Position), f(s.Velocity), f(s.Estimated), f(s.Measured),
			f(s.Target), f(s.Output),
			strconv.Itoa(s.Requested), strconv.Itoa(s.Applied),
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "write sample")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush samples")
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, errors.Wrap(err, "read run store")
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, errors.Wrapf(err, "read run %s", runID)
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, "decode run %s", runID)
	}
	return &meta, nil
}

// Latest returns the id of the newest run.
func (s *Store) Latest() (string, error) {
	runs, err := s.List()
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs found")
	}
	return runs[0].ID, nil
}

func (s *Store) SamplesPath(runID string) string {
	return filepath.Join(s.baseDir, runID, samplesFile)
}

func (s *Store) LoadSamples(runID string) ([]sim.Sample, error) {
	file, err := os.Open(s.SamplesPath(runID))
	if err != nil {
		return nil, errors.Wrapf(err, "open samples for %s", runID)
	}
	defer file.Close()
	return ReadCSV(file)
}

// ReadCSV parses samples written by WriteCSV. Malformed rows are skipped.
func ReadCSV(r io.Reader) ([]sim.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read samples")
	}
	if len(records) < 2 {
		return []sim.Sample{}, nil
	}

	samples := make([]sim.Sample, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != len(sampleHeader) {
			continue
		}
		s, err := parseSample(rec)
		if err != nil {
			continue
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func parseSample(rec []string) (sim.Sample, error) {
	var (
		s    sim.Sample
		vals [6]float64
	)
	t, err := strconv.ParseUint(rec[0], 10, 32)
	if err != nil {
		return s, err
	}
	for i := range vals {
		if vals[i], err = strconv.ParseFloat(rec[i+1], 64); err != nil {
			return s, err
		}
	}
	req, err := strconv.Atoi(rec[7])
	if err != nil {
		return s, err
	}
	applied, err := strconv.Atoi(rec[8])
	if err != nil {
		return s, err
	}

	return sim.Sample{
		TimeMs:    uint32(t),
		Position:  vals[0],
		Velocity:  vals[1],
		Estimated: vals[2],
		Measured:  vals[3],
		Target:    vals[4],
		Output:    vals[5],
		Requested: req,
		Applied:   applied,
	}, nil
}
