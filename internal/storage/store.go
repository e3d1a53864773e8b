package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/conlab/internal/engine"
)

const (
	metadataFile   = "metadata.json"
	transcriptFile = "transcript.txt"
	formulasFile   = "formulas.txt"
	vectorsFile    = "vectors.csv"
	snippetPrefix  = "snippet."
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string           `json:"id"`
	Family     string           `json:"family"`
	Order      string           `json:"axis_order"`
	Timestamp  time.Time        `json:"timestamp"`
	Seed       int64            `json:"seed"`
	Dialect    string           `json:"dialect"`
	Negate     bool             `json:"negate"`
	Simplified bool             `json:"simplified"`
	Elapsed    float64          `json:"elapsed_seconds"`
	Vectors    []string         `json:"vectors"`
	Verdicts   []engine.Verdict `json:"verdicts"`
	Snippet    string           `json:"snippet,omitempty"`
}

// Passed reports whether every verdict of the run matched.
func (m *RunMetadata) Passed() bool {
	for _, v := range m.Verdicts {
		if !v.Match {
			return false
		}
	}
	return true
}

// Save writes one run directory for d and returns its id.
func (s *Store) Save(d *engine.Derivation, seed int64, negate bool) (string, error) {
	runID, runDir, err := s.newRunDir(d.Family)
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Family:     d.Family,
		Order:      d.Order.String(),
		Timestamp:  time.Now(),
		Seed:       seed,
		Dialect:    d.Dialect.String(),
		Negate:     negate,
		Simplified: simplified(d),
		Elapsed:    d.Elapsed.Seconds(),
		Verdicts:   d.Verdicts,
	}
	for _, nv := range d.Vectors {
		meta.Vectors = append(meta.Vectors, nv.Name)
	}
	if d.Snippet != "" {
		meta.Snippet = snippetPrefix + d.Dialect.Ext()
		if err := os.WriteFile(filepath.Join(runDir, meta.Snippet), []byte(d.Snippet), 0644); err != nil {
			return "", err
		}
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(runDir, transcriptFile), []byte(strings.Join(d.Transcript, "\n")+"\n"), 0644); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, f := range d.Formulas() {
		fmt.Fprintf(&sb, "%s = %s\n", f[0], f[1])
	}
	if err := os.WriteFile(filepath.Join(runDir, formulasFile), []byte(sb.String()), 0644); err != nil {
		return "", err
	}

	if err := writeEvaluations(filepath.Join(runDir, vectorsFile), d); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) newRunDir(family string) (string, string, error) {
	base := fmt.Sprintf("%s_%d", family, time.Now().Unix())
	runID := base
	for i := 2; ; i++ {
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if os.IsNotExist(err) {
			if err := os.MkdirAll(s.baseDir, 0755); err != nil {
				return "", "", err
			}
			continue
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		runID = fmt.Sprintf("%s_%d", base, i)
	}
}

func simplified(d *engine.Derivation) bool {
	if !d.Acceleration.Simplified {
		return false
	}
	for _, g := range d.Gradient {
		if !g.Simplified {
			return false
		}
	}
	return true
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeEvaluations(path string, d *engine.Derivation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"vector", "C", "accel"}
	for _, g := range d.Gradient {
		header = append(header, "dC/d"+g.Coord)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, ev := range d.Evaluations {
		row := []string{ev.Vector, formatFloat(ev.Residual), formatFloat(ev.Acceleration)}
		for _, x := range ev.Gradient {
			row = append(row, formatFloat(x))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(x float64) string { return strconv.FormatFloat(x, 'g', 17, 64) }

// List returns every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
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
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadFormulas returns the name, formula pairs of a run in file order.
func (s *Store) LoadFormulas(runID string) ([][2]string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, formulasFile))
	if err != nil {
		return nil, err
	}
	var out [][2]string
	for _, line := range strings.Split(string(data), "\n") {
		name, formula, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		out = append(out, [2]string{name, formula})
	}
	return out, nil
}

func (s *Store) LoadTranscript(runID string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, transcriptFile))
	if err != nil {
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n"), nil
}

// LoadSnippet returns the exported solver code of a run, if any.
func (s *Store) LoadSnippet(runID string) (string, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return "", err
	}
	if meta.Snippet == "" {
		return "", nil
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, meta.Snippet))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadEvaluations reads vectors.csv: the column names after "vector" and
// one row of values per test vector.
func (s *Store) LoadEvaluations(runID string) ([]string, map[string][]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, vectorsFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, map[string][]float64{}, nil
	}

	columns := records[0][1:]
	rows := make(map[string][]float64, len(records)-1)
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		vals := make([]float64, 0, len(record)-1)
		for _, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: vector %s: %w", vectorsFile, record[0], err)
			}
			vals = append(vals, v)
		}
		rows[record[0]] = vals
	}
	return columns, rows, nil
}
