package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odysseyscraper/pkg/config"
	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/models"
)

func sampleCase(code string, day int) *models.StructuredCase {
	return &models.StructuredCase{
		Code:        code,
		SourceID:    "12947592",
		CaptureDate: models.NewCaptureDate(time.Date(2024, 7, day, 0, 0, 0, 0, time.UTC)),
		Name:        "The State of Texas vs. John Smith",
		Fields:      map[string]string{"case type": "Adult Felony"},
		Party:       models.PartyInformation{Defendant: "Smith, John", SID: "TX04567890"},
		Charges:     []models.Charge{{Charges: "THEFT", Statute: "31.03", Level: "State Jail Felony", Date: "12/01/2015"}},
	}
}

// exerciseStore runs the behaviour every Store must share
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := store.Load(ctx, "CR-16-0002-A")
	require.NoError(t, err)
	assert.False(t, ok)

	first := sampleCase("CR-16-0002-A", 1)
	require.NoError(t, store.Save(ctx, first))

	got, ok, err := store.Load(ctx, "CR-16-0002-A")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	second := sampleCase("CR-16-0002-A", 2)
	second.Party.Bondsman = "Freedom Bail Bonds"
	require.NoError(t, store.Save(ctx, second))

	got, ok, err = store.Load(ctx, "CR-16-0002-A")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("Load() after replace mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "case_data")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Count())

	exerciseStore(t, store)
	assert.Equal(t, 1, store.Count())
	assert.FileExists(t, filepath.Join(dir, "CR-16-0002-A.json"))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	// a new store indexes what is already on disk
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CR-17-0001-A.json"), []byte(`{"code":"CR-17-0001-A"}`), 0644))
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Count())
}

func TestFileStoreKeepsCodeInsideDirectory(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), sampleCase("../CR/1", 1)))
	assert.FileExists(t, filepath.Join(dir, ".._CR_1.json"))
}

func TestFileStoreCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CR-1.json"), []byte("{not json"), 0644))
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, _, err = store.Load(context.Background(), "CR-1")
	var serr *errs.StorageError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "load", serr.Op)
	assert.Equal(t, errs.KindStorage, errs.KindOf(err))
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hays", SQLiteFile)
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), sampleCase("CR-16-0002-A", 1)))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	_, ok, err := reopened.Load(context.Background(), "CR-16-0002-A")
	require.NoError(t, err)
	assert.True(t, ok)
}

// countingStore records how often the wrapped store is read
type countingStore struct {
	Store
	loads int
}

func (s *countingStore) Load(ctx context.Context, code string) (*models.StructuredCase, bool, error) {
	s.loads++
	return s.Store.Load(ctx, code)
}

func TestCachedStore(t *testing.T) {
	inner, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	counting := &countingStore{Store: inner}
	store := NewCachedStore(counting, time.Minute)
	ctx := context.Background()

	exerciseStore(t, store)
	// misses go through, hits after a save do not
	assert.Equal(t, 1, counting.loads)

	_, ok, err := store.Load(ctx, "CR-99")
	require.NoError(t, err)
	assert.False(t, ok)
	_, _, _ = store.Load(ctx, "CR-99")
	assert.Equal(t, 3, counting.loads)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(config.StorageConfig{Backend: "json", Directory: dir}, "hays")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	assert.DirExists(t, filepath.Join(dir, "hays", CaseDataDir))

	store, err = Open(config.StorageConfig{Backend: "sqlite", Directory: dir, CacheTTL: time.Minute}, "hays")
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &CachedStore{}, store)
	assert.FileExists(t, filepath.Join(dir, "hays", SQLiteFile))

	_, err = Open(config.StorageConfig{Backend: "csv", Directory: dir}, "hays")
	assert.Error(t, err)
}

func TestArchive(t *testing.T) {
	archive, err := NewArchive(filepath.Join(t.TempDir(), CaseHTMLDir))
	require.NoError(t, err)

	page := &models.RawCasePage{
		CaseNumber:  "CR-16-0002-A",
		SourceID:    "12947592",
		CaptureDate: models.NewCaptureDate(time.Date(2024, 7, 2, 15, 0, 0, 0, time.UTC)),
		HTML:        []byte("<html><body>case</body></html>"),
	}

	path, written, err := archive.Save(page)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, "07-02-2024 12947592.html", filepath.Base(path))

	_, written, err = archive.Save(page)
	require.NoError(t, err)
	assert.False(t, written, "identical content is not rewritten")

	page.HTML = []byte("<html><body>amended</body></html>")
	_, written, err = archive.Save(page)
	require.NoError(t, err)
	assert.True(t, written)

	// a fresh archive recognises content already on disk
	again, err := NewArchive(archive.Dir())
	require.NoError(t, err)
	_, written, err = again.Save(page)
	require.NoError(t, err)
	assert.False(t, written)

	read, err := ReadArchived(path)
	require.NoError(t, err)
	assert.Equal(t, "12947592", read.SourceID)
	assert.Equal(t, "07-02-2024", read.CaptureDate.String())
	assert.Equal(t, page.HTML, read.HTML)
}

func TestParseArchiveName(t *testing.T) {
	captured, id, err := ParseArchiveName("/data/hays/case_html/01-05-2016 12947592.html")
	require.NoError(t, err)
	assert.Equal(t, "01-05-2016", captured.String())
	assert.Equal(t, "12947592", id)

	for _, bad := range []string{"12947592.html", "2016-01-05 1.html", "01-05-2016 .html"} {
		_, _, err := ParseArchiveName(bad)
		assert.Error(t, err, bad)
	}
}
