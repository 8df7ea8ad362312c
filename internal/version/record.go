package version

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/shipver/internal/fsutil"
)

// ErrNoRecord is returned by ReadRecord when no handoff record exists yet.
var ErrNoRecord = errors.New("no version record found; run `shipver resolve` first")

// WriteRecord stores m at path so a later step of the same build (the
// deployer) can pick it up. The previous record is replaced atomically.
func WriteRecord(path string, m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding version record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating record directory: %w", err)
	}
	if err := fsutil.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing version record %s: %w", path, err)
	}
	return nil
}

// ReadRecord loads and validates the record written by WriteRecord.
func ReadRecord(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{}, fmt.Errorf("%w (%s)", ErrNoRecord, path)
		}
		return Metadata{}, fmt.Errorf("reading version record %s: %w", path, err)
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decoding version record %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return Metadata{}, fmt.Errorf("version record %s: %w", path, err)
	}
	return m, nil
}
