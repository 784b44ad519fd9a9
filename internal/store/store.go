// Package store persists extracted documents and the append-only index log.
//
// Layout below the data root:
//
//	raw/<category>/<key>/<category>-<key>-<h16>.html
//	processed/<category>/<key>/<category>-<key>-<h16>.txt
//	meta/index.jsonl
//
// where h16 is the 16-hex-char hash of the document URL. Content files are
// always written before the index record that references them.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"corpuscrawler/internal/urlutil"
)

// DefaultRoot is the data root used when none is configured.
const DefaultRoot = "data/corpus"

const (
	rawDir       = "raw"
	processedDir = "processed"
	metaDir      = "meta"
	indexFile    = "index.jsonl"
	ledgerFile   = "ledger.db"
)

var ErrClosed = errors.New("store closed")

// Document is content ready to be persisted.
type Document struct {
	Category string
	Source   string
	URL      string
	Raw      []byte
	Text     string
}

// Paths are the content file locations of one document.
type Paths struct {
	Raw  string
	Text string
}

// Store writes content files and index records below a root directory.
// Index appends are serialized; it is safe for concurrent use.
type Store struct {
	root  string
	mu    sync.Mutex
	index *os.File
}

// Open prepares root and opens the index log for appending.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultRoot
	}

	if err := os.MkdirAll(filepath.Join(root, metaDir), 0o755); err != nil {
		return nil, fmt.Errorf("create meta directory: %w", err)
	}

	index, err := os.OpenFile(IndexPath(root), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	if err := terminateLastLine(index); err != nil {
		index.Close()

		return nil, fmt.Errorf("repair index: %w", err)
	}

	return &Store{root: root, index: index}, nil
}

// terminateLastLine ends a partial line left by an interrupted append so the
// next record starts on a line of its own.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}

	_, err = f.Write([]byte{'\n'})

	return err
}

// IndexPath returns the index log location for root.
func IndexPath(root string) string {
	return filepath.Join(root, metaDir, indexFile)
}

// LedgerPath returns the resume ledger location for root.
func LedgerPath(root string) string {
	return filepath.Join(root, metaDir, ledgerFile)
}

// Root returns the data root.
func (s *Store) Root() string {
	return s.root
}

// PathsFor derives the content file locations for a document URL.
func (s *Store) PathsFor(category, key, rawURL string) Paths {
	name := category + "-" + key + "-" + urlutil.Hash(rawURL)

	return Paths{
		Raw:  filepath.Join(s.root, rawDir, category, key, name+".html"),
		Text: filepath.Join(s.root, processedDir, category, key, name+".txt"),
	}
}

// Save writes the raw body and processed text, then appends rec completed
// with the storage fields. The returned record is what was appended.
//
// If the append fails the content files stay on disk without a record;
// a later run writes them again at the same paths.
func (s *Store) Save(doc Document, rec Record) (Record, error) {
	paths := s.PathsFor(doc.Category, doc.Source, doc.URL)

	if len(doc.Raw) > 0 {
		if err := writeFile(paths.Raw, doc.Raw); err != nil {
			return rec, fmt.Errorf("write raw: %w", err)
		}
		rec.PathRaw = paths.Raw
	}

	if err := writeFile(paths.Text, []byte(doc.Text)); err != nil {
		return rec, fmt.Errorf("write text: %w", err)
	}

	rec.Category = doc.Category
	rec.Source = doc.Source
	rec.URL = doc.URL
	rec.PathText = paths.Text
	rec.ProcessedFilename = filepath.Base(paths.Text)
	rec.ContentType = ContentTypeText
	rec.Bytes = int64(len(doc.Text))
	rec.Status = StatusOK

	if err := s.Append(rec); err != nil {
		return rec, err
	}

	return rec, nil
}

// Append writes rec as one JSON line.
func (s *Store) Append(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return ErrClosed
	}

	if _, err := s.index.Write(data); err != nil {
		return fmt.Errorf("append index: %w", err)
	}

	return nil
}

// Close flushes and closes the index log.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil
	}

	err := s.index.Sync()
	if cerr := s.index.Close(); err == nil {
		err = cerr
	}
	s.index = nil

	return err
}

// writeFile replaces path atomically through a temporary sibling.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return err
	}

	return os.Rename(tmp.Name(), path)
}
