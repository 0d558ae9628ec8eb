package collector

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/saashunter/hunter/internal/model"
)

// BatchMeta describes one raw collection batch. It is written as the
// `_metadata` first line of JSONL batches and the envelope fields of JSON
// batches.
type BatchMeta struct {
	Metadata       bool     `json:"_metadata,omitempty"`
	ScanTime       string   `json:"scan_time"`
	TotalRecords   int      `json:"total_opportunities"`
	SourcesScanned []string `json:"sources_scanned,omitempty"`
	Method         string   `json:"method"`
	HoursBack      int      `json:"hours_back"`
}

// jsonBatch is the single-object raw batch file shape.
type jsonBatch struct {
	BatchMeta
	Opportunities []model.Opportunity `json:"opportunities"`
}

// WriteJSONLBatch writes a raw batch as JSONL: a `_metadata` line followed
// by one record per line. Returns the batch file path.
func WriteJSONLBatch(rawDir, collector string, meta BatchMeta, records []model.Opportunity, now time.Time) (string, error) {
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return "", eris.Wrap(err, "collector: mkdir raw dir")
	}
	path := filepath.Join(rawDir, collector+"_"+now.Format("20060102_150405")+".jsonl")

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "collector: create batch %s", path)
	}
	defer f.Close()

	meta.Metadata = true
	meta.TotalRecords = len(records)
	enc := json.NewEncoder(f)
	if err := enc.Encode(meta); err != nil {
		return "", eris.Wrap(err, "collector: write batch metadata")
	}
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return "", eris.Wrap(err, "collector: write batch record")
		}
	}
	return path, nil
}

// WriteJSONBatch writes a raw batch as a single indented JSON object with
// the records under an `opportunities` key. Returns the batch file path.
func WriteJSONBatch(rawDir, collector string, meta BatchMeta, records []model.Opportunity, now time.Time) (string, error) {
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return "", eris.Wrap(err, "collector: mkdir raw dir")
	}
	path := filepath.Join(rawDir, collector+"_"+now.Format("20060102_150405")+".json")

	meta.TotalRecords = len(records)
	batch := jsonBatch{BatchMeta: meta, Opportunities: records}
	if batch.Opportunities == nil {
		batch.Opportunities = []model.Opportunity{}
	}
	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "collector: marshal batch")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "collector: write batch %s", path)
	}
	return path, nil
}
