package filecontext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veron/internal/apperr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestIndex(opts ...Option) *Index {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewIndex(nil, append([]Option{WithClock(func() time.Time { return fixed })}, opts...)...)
}

func TestProcessSameBytesSameID(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "identical content")
	b := writeFile(t, dir, "b.txt", "identical content")
	ix := newTestIndex()

	first, err := ix.Process(context.Background(), a, "a.txt")
	require.NoError(t, err)
	second, err := ix.Process(context.Background(), b, "b.txt")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, first.ID, 32)
	assert.Equal(t, 1, ix.Len())
	got, ok := ix.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, "b.txt", got.OriginalFilename)
}

func TestProcessKeepsInsertionOrderOnOverwrite(t *testing.T) {
	dir := t.TempDir()
	ix := newTestIndex()
	p1 := writeFile(t, dir, "one.txt", "first document")
	p2 := writeFile(t, dir, "two.txt", "second document")
	_, err := ix.Process(context.Background(), p1, "one.txt")
	require.NoError(t, err)
	_, err = ix.Process(context.Background(), p2, "two.txt")
	require.NoError(t, err)
	_, err = ix.Process(context.Background(), p1, "one-again.txt")
	require.NoError(t, err)

	list := ix.List()
	require.Len(t, list, 2)
	assert.Equal(t, "one-again.txt", list[0].OriginalFilename)
	assert.Equal(t, "two.txt", list[1].OriginalFilename)
}

func TestProcessDerivedFields(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.MD", "  machine learning machine learning neural networks \n")
	ix := newTestIndex()

	rec, err := ix.Process(context.Background(), path, "notes.MD")
	require.NoError(t, err)
	assert.Equal(t, "md", rec.FileType)
	assert.Equal(t, "machine learning machine learning neural networks", rec.ExtractedText)
	assert.Equal(t, 6, rec.WordCount)
	assert.Equal(t, len(rec.ExtractedText), rec.TextLength)
	assert.Equal(t, rec.ExtractedText, rec.Summary)
	assert.Equal(t, []string{"machine", "learning", "neural", "networks"}, rec.Keywords)
	assert.Equal(t, int64(len("  machine learning machine learning neural networks \n")), rec.FileSize)
	assert.False(t, rec.Failed())
}

func TestProcessUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.xyz", "some words that will never be read")
	ix := newTestIndex()

	rec, err := ix.Process(context.Background(), path, "data.xyz")
	require.NoError(t, err)
	assert.Equal(t, "", rec.ExtractedText)
	assert.Equal(t, 0, rec.WordCount)
	assert.Empty(t, rec.Keywords)
	_, ok := ix.Get(rec.ID)
	assert.True(t, ok)
}

func TestProcessMissingFile(t *testing.T) {
	ix := newTestIndex()
	rec, err := ix.Process(context.Background(), "/does/not/exist.txt", "exist.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExtraction)
	assert.True(t, strings.HasPrefix(rec.ID, "failed-"))
	assert.True(t, rec.Failed())
	assert.Equal(t, 1, ix.Stats().FailedFiles)
}

type failingExtractor struct{}

func (failingExtractor) Extract(context.Context, string, string) (string, error) {
	return "", errors.New("corrupt xref table")
}

func TestProcessExtractionFailureKeepsRecord(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.pdf", "%PDF-garbage")
	ix := NewIndex(failingExtractor{})

	rec, err := ix.Process(context.Background(), path, "broken.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrExtraction)
	assert.Equal(t, hashBytes([]byte("%PDF-garbage")), rec.ID)
	assert.Contains(t, rec.Error, "corrupt xref")

	assert.Empty(t, ix.RelevantFiles("garbage", 5))
}

func TestContextForRanksAndFormats(t *testing.T) {
	dir := t.TempDir()
	ix := newTestIndex()
	ml := writeFile(t, dir, "ml.txt", "machine learning machine learning neural networks")
	other := writeFile(t, dir, "cook.txt", "recipes for bread and soup")
	weak := writeFile(t, dir, "weak.txt", "a single mention of learning here")
	for name, p := range map[string]string{"ml.txt": ml, "cook.txt": other, "weak.txt": weak} {
		_, err := ix.Process(context.Background(), p, name)
		require.NoError(t, err)
	}

	ranked := ix.RelevantFiles("machine learning", 5)
	require.Len(t, ranked, 2)
	assert.Equal(t, "ml.txt", ranked[0].File.OriginalFilename)
	assert.Equal(t, 2+5+2+5, ranked[0].Score)
	assert.Equal(t, "weak.txt", ranked[1].File.OriginalFilename)

	out := ix.ContextFor("machine learning", 5)
	assert.Contains(t, out, "=== From file: ml.txt ===\nmachine learning machine learning neural networks\n")
	assert.NotContains(t, out, "cook.txt")

	top := ix.ContextFor("machine learning", 1)
	assert.Equal(t, "=== From file: ml.txt ===\nmachine learning machine learning neural networks\n", top)
	assert.Equal(t, "", ix.ContextFor("zebra", 5))
}

func TestContextForEqualScoresKeepInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	ix := newTestIndex()
	beta := writeFile(t, dir, "beta.txt", "quantum chemistry notes")
	alpha := writeFile(t, dir, "alpha.txt", "quantum mechanics lecture")
	_, err := ix.Process(context.Background(), beta, "beta.txt")
	require.NoError(t, err)
	_, err = ix.Process(context.Background(), alpha, "alpha.txt")
	require.NoError(t, err)

	ranked := ix.RelevantFiles("quantum", 5)
	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
	assert.Equal(t, "beta.txt", ranked[0].File.OriginalFilename)
	assert.Equal(t, "alpha.txt", ranked[1].File.OriginalFilename)

	out := ix.ContextFor("quantum", 5)
	betaAt := strings.Index(out, "=== From file: beta.txt ===")
	alphaAt := strings.Index(out, "=== From file: alpha.txt ===")
	require.GreaterOrEqual(t, betaAt, 0)
	require.GreaterOrEqual(t, alphaAt, 0)
	assert.Less(t, betaAt, alphaAt)

	top := ix.ContextFor("quantum", 1)
	assert.Contains(t, top, "beta.txt")
	assert.NotContains(t, top, "alpha.txt")
}

func TestQueryMatchesKeywordsOrText(t *testing.T) {
	dir := t.TempDir()
	ix := newTestIndex(WithLocker(NoLock{}))
	a := writeFile(t, dir, "a.txt", "Quantum computing basics")
	b := writeFile(t, dir, "b.txt", "gardening for beginners")
	_, err := ix.Process(context.Background(), a, "a.txt")
	require.NoError(t, err)
	_, err = ix.Process(context.Background(), b, "b.txt")
	require.NoError(t, err)

	got := ix.Query([]string{"QUANTUM", "garden"})
	require.Len(t, got, 2)
	assert.Equal(t, "a.txt", got[0].OriginalFilename)
	assert.Empty(t, ix.Query([]string{"astronomy"}))
}

func TestDeleteRemovesRecordAndFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gone.txt", "temporary")
	ix := newTestIndex()
	rec, err := ix.Process(context.Background(), path, "gone.txt")
	require.NoError(t, err)

	assert.True(t, ix.Delete(rec.ID))
	_, ok := ix.Get(rec.ID)
	assert.False(t, ok)
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	assert.False(t, ix.Delete(rec.ID))
	assert.Empty(t, ix.List())
}

func TestReprocessSameBytesRemovesStaleCopy(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "upload-1_report.txt", "quarterly report")
	second := writeFile(t, dir, "upload-2_report.txt", "quarterly report")
	ix := newTestIndex()

	a, err := ix.Process(context.Background(), first, "report.txt")
	require.NoError(t, err)
	b, err := ix.Process(context.Background(), second, "report.txt")
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	assert.Equal(t, 1, ix.Len())

	_, statErr := os.Stat(first)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	_, statErr = os.Stat(second)
	require.NoError(t, statErr)

	_, err = ix.Process(context.Background(), second, "report.txt")
	require.NoError(t, err)
	_, statErr = os.Stat(second)
	require.NoError(t, statErr)

	assert.True(t, ix.Delete(b.ID))
	_, statErr = os.Stat(second)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	ix := newTestIndex()
	_, err := ix.Process(context.Background(), writeFile(t, dir, "a.txt", "one two three"), "a.txt")
	require.NoError(t, err)
	_, err = ix.Process(context.Background(), writeFile(t, dir, "b.md", "four five"), "b.md")
	require.NoError(t, err)
	_, _ = ix.Process(context.Background(), filepath.Join(dir, "missing.pdf"), "missing.pdf")

	stats := ix.Stats()
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 1, stats.FailedFiles)
	assert.Equal(t, 5, stats.TotalWords)
	assert.Equal(t, int64(len("one two three")+len("four five")), stats.TotalBytes)
	assert.Equal(t, map[string]int{"txt": 1, "md": 1, "pdf": 1}, stats.ByType)
}

func TestGetReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	ix := newTestIndex()
	rec, err := ix.Process(context.Background(), writeFile(t, dir, "c.txt", "alpha beta gamma delta"), "c.txt")
	require.NoError(t, err)

	rec.Keywords[0] = "mutated"
	got, _ := ix.Get(rec.ID)
	assert.NotEqual(t, "mutated", got.Keywords[0])
}
