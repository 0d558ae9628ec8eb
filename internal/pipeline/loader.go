package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/saashunter/hunter/internal/model"
)

// batchEnvelope is the single-object raw batch file shape.
type batchEnvelope struct {
	Opportunities []model.Opportunity `json:"opportunities"`
}

// LoadRecords reads one raw batch file in either supported shape: a single
// JSON object with an "opportunities" list, or newline-delimited JSON with
// an optional leading {"_metadata": true, ...} line. Malformed lines are
// logged and skipped, not fatal.
func LoadRecords(path string) ([]model.Opportunity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "load: read %s", path)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	// A batch envelope is one JSON object spanning the whole file.
	var envelope batchEnvelope
	if err := json.Unmarshal(trimmed, &envelope); err == nil && envelope.Opportunities != nil {
		return envelope.Opportunities, nil
	}

	var records []model.Opportunity
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var keys map[string]json.RawMessage
		if err := json.Unmarshal(line, &keys); err != nil {
			zap.L().Warn("load: skipping malformed line",
				zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if _, isMeta := keys["_metadata"]; isMeta {
			continue
		}

		var o model.Opportunity
		if err := json.Unmarshal(line, &o); err != nil {
			zap.L().Warn("load: skipping malformed record",
				zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		records = append(records, o)
	}
	if err := scanner.Err(); err != nil {
		return records, eris.Wrapf(err, "load: scan %s", path)
	}

	return records, nil
}

// AppendProcessed appends enriched records as JSONL to the daily output
// log. The log is append-only with no uniqueness enforcement; reprocessing
// can produce duplicate lines, which downstream consumers tolerate.
func AppendProcessed(path string, records []model.Opportunity) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "append: open %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for i := range records {
		line, err := json.Marshal(&records[i])
		if err != nil {
			return eris.Wrap(err, "append: marshal record")
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return eris.Wrapf(err, "append: write %s", path)
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "append: flush %s", path)
	}
	return nil
}
