package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const maxLine = 4 << 20

// ScanIndex calls fn for every decodable record of the index log at path.
// A missing log is empty. Lines that do not decode, such as a partial
// line left by an interrupted append, are skipped.
func ScanIndex(path string, fn func(Record) error) error {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLine)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}

		if err := fn(rec); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read index: %w", err)
	}

	return nil
}

// StoredHashes returns the content hashes of ok records in the index log.
func StoredHashes(path string) ([]string, error) {
	var hashes []string
	err := ScanIndex(path, func(rec Record) error {
		if rec.Status == StatusOK && rec.Hash() != "" {
			hashes = append(hashes, rec.Hash())
		}

		return nil
	})

	return hashes, err
}
