package ledgerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// RecordFile is a Wallet backed by a JSON export of decrypted records. The file holds either
// an array of records or an object with a "records" array. It is re-read on every request so
// a fresh export is picked up without restarting.
type RecordFile struct {
	Path string
}

// Connect checks that the export is readable.
func (f *RecordFile) Connect(ctx context.Context) error {
	if _, err := f.load(); err != nil {
		return err
	}
	return ctx.Err()
}

// RequestRecords returns the records of programID. Records without a program id are assumed to
// belong to it.
func (f *RecordFile) RequestRecords(ctx context.Context, programID string) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]RawRecord, 0, len(all))
	for _, r := range all {
		if r.ProgramID == "" || r.ProgramID == programID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *RecordFile) load() ([]RawRecord, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	var records []RawRecord
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Records []RawRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode record file %s: %w", f.Path, err)
	}
	return wrapped.Records, nil
}
