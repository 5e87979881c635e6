package farms

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// ErrNoRecords is returned when a farm data document holds no records
var ErrNoRecords = errors.New("no farm records")

// DecodeRecords reads farm records from a JSON document holding either a
// single record object or an array of them
func DecodeRecords(r io.Reader) ([]*calculation.FarmRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read farm data: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrNoRecords
	}

	var records []*calculation.FarmRecord
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse farm data: %w", err)
		}
	} else {
		var record calculation.FarmRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to parse farm data: %w", err)
		}
		records = append(records, &record)
	}

	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	for i, record := range records {
		if record == nil {
			return nil, fmt.Errorf("farm record %d is null", i)
		}
	}
	return records, nil
}

// LoadRecordsFile reads farm records from a JSON file
func LoadRecordsFile(path string) ([]*calculation.FarmRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open farm data: %w", err)
	}
	defer f.Close()

	return DecodeRecords(f)
}
