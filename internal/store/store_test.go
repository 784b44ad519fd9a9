package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"corpuscrawler/internal/urlutil"
)

func readRecords(t *testing.T, root string) []Record {
	t.Helper()

	var out []Record
	require.NoError(t, ScanIndex(IndexPath(root), func(rec Record) error {
		out = append(out, rec)

		return nil
	}))

	return out
}

func TestSaveWritesContentThenRecord(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	const pageURL = "https://example.com/a/1"
	text := strings.Repeat("x", 50)

	rec, err := s.Save(Document{
		Category: "news",
		Source:   "A",
		URL:      pageURL,
		Raw:      []byte("<html>body</html>"),
		Text:     text,
	}, Record{ID: Ptr("sha256:abc"), Title: "One", FetchedAt: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)

	h16 := urlutil.Hash(pageURL)
	wantText := filepath.Join(root, "processed", "news", "A", "news-A-"+h16+".txt")
	wantRaw := filepath.Join(root, "raw", "news", "A", "news-A-"+h16+".html")

	require.Equal(t, wantText, rec.PathText)
	require.Equal(t, wantRaw, rec.PathRaw)
	require.Equal(t, "news-A-"+h16+".txt", rec.ProcessedFilename)
	require.Equal(t, int64(50), rec.Bytes)
	require.Equal(t, StatusOK, rec.Status)
	require.Equal(t, ContentTypeText, rec.ContentType)

	data, err := os.ReadFile(wantText)
	require.NoError(t, err)
	require.Equal(t, text, string(data))

	raw, err := os.ReadFile(wantRaw)
	require.NoError(t, err)
	require.Equal(t, "<html>body</html>", string(raw))

	require.NoError(t, s.Close())

	records := readRecords(t, root)
	require.Len(t, records, 1)
	require.Equal(t, "sha256:abc", records[0].Hash())
	require.Equal(t, "One", records[0].Title)
	require.Nil(t, records[0].Error)
}

func TestSaveLeavesContentWithoutRecordWhenAppendFails(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	doc := Document{Category: "news", Source: "A", URL: "https://example.com/x", Text: "some text"}

	_, err = s.Save(doc, Record{ID: Ptr("sha256:1")})
	require.ErrorIs(t, err, ErrClosed)

	_, statErr := os.Stat(s.PathsFor("news", "A", doc.URL).Text)
	require.NoError(t, statErr, "content is written before the record")
	require.Empty(t, readRecords(t, root))

	again, err := Open(root)
	require.NoError(t, err)
	_, err = again.Save(doc, Record{ID: Ptr("sha256:1")})
	require.NoError(t, err)
	require.NoError(t, again.Close())

	require.Len(t, readRecords(t, root), 1)
}

func TestAppendNullableFields(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	require.NoError(t, s.Append(Record{
		Category: "news",
		Source:   "A",
		URL:      "https://example.com/index",
		Status:   StatusInfo,
		Error:    Ptr("html-index: 3 items"),
	}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(IndexPath(root))
	require.NoError(t, err)
	require.Contains(t, string(data), `"id":null`)
	require.Contains(t, string(data), `"status":"info"`)
	require.Contains(t, string(data), `"error":"html-index: 3 items"`)
	require.True(t, strings.HasSuffix(string(data), "}\n"))
}

func TestConcurrentAppendsStayWholeLines(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			_ = s.Append(Record{Category: "c", Source: "s", URL: strings.Repeat("u", 512), Status: StatusError, Error: Ptr("no-text")})
		})
	}
	wg.Wait()
	require.NoError(t, s.Close())

	require.Len(t, readRecords(t, root), 50)
}

func TestScanIndexSkipsPartialTrailingLine(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := IndexPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	content := `{"id":"sha256:a","category":"c","source":"s","url":"u1","status":"ok","error":null}` + "\n" +
		`{"id":null,"category":"c","source":"s","url":"u2","status":"error","error":"no-text"}` + "\n" +
		`{"id":"sha256:b","category":"c","sou`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records := readRecords(t, root)
	require.Len(t, records, 2)
	require.Equal(t, "no-text", records[1].Detail())

	hashes, err := StoredHashes(path)
	require.NoError(t, err)
	require.Equal(t, []string{"sha256:a"}, hashes)

	s, err := Open(root)
	require.NoError(t, err)
	require.NoError(t, s.Append(Record{ID: Ptr("sha256:c"), Category: "c", Source: "s", URL: "u3", Status: StatusOK}))
	require.NoError(t, s.Close())

	hashes, err = StoredHashes(path)
	require.NoError(t, err)
	require.Equal(t, []string{"sha256:a", "sha256:c"}, hashes)
	require.Len(t, readRecords(t, root), 3)
}

func TestOpenKeepsTerminatedIndexAsIs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s, err := Open(root)
	require.NoError(t, err)
	require.NoError(t, s.Append(Record{ID: Ptr("sha256:a"), URL: "u1", Status: StatusOK}))
	require.NoError(t, s.Close())

	s, err = Open(root)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(IndexPath(root))
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "\n"))
	require.NotContains(t, string(data), "\n\n")
}

func TestScanIndexMissingFile(t *testing.T) {
	t.Parallel()

	hashes, err := StoredHashes(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.NoError(t, err)
	require.Empty(t, hashes)
}
