// Package filecontext keeps uploaded documents in memory and ranks them as
// context for outbound model calls.
package filecontext

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"veron/internal/apperr"
	"veron/internal/models"
)

// RWLocker guards the index map.
type RWLocker interface {
	sync.Locker
	RLock()
	RUnlock()
}

// NoLock is a RWLocker for single goroutine use.
type NoLock struct{}

func (NoLock) Lock()    {}
func (NoLock) Unlock()  {}
func (NoLock) RLock()   {}
func (NoLock) RUnlock() {}

// Index is the in-memory store of processed files keyed by content hash.
type Index struct {
	mu        RWLocker
	files     map[string]*models.ProcessedFile
	order     []string
	extractor Extractor
	now       func() time.Time
	log       logrus.FieldLogger
}

type Option func(*Index)

func WithLocker(l RWLocker) Option {
	return func(ix *Index) { ix.mu = l }
}

func WithClock(now func() time.Time) Option {
	return func(ix *Index) { ix.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(ix *Index) { ix.log = l }
}

// NewIndex creates an empty index. extractor may be nil, in which case every
// file is read as plain text.
func NewIndex(extractor Extractor, opts ...Option) *Index {
	ix := &Index{
		mu:        &sync.RWMutex{},
		files:     make(map[string]*models.ProcessedFile),
		extractor: extractor,
		now:       time.Now,
		log:       logrus.StandardLogger(),
	}
	if ix.extractor == nil {
		ix.extractor = plainExtractor{}
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Process extracts the text of the file at path and stores the result.
// A record is stored even when extraction fails; in that case the returned
// error wraps apperr.ErrExtraction.
func (ix *Index) Process(ctx context.Context, path, originalName string) (*models.ProcessedFile, error) {
	fileType := FileType(originalName)
	rec := &models.ProcessedFile{
		OriginalFilename: originalName,
		FilePath:         path,
		FileType:         fileType,
		ProcessedAt:      ix.now(),
		Keywords:         []string{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		rec.ID = "failed-" + hashBytes([]byte(path))
		rec.Error = err.Error()
		ix.put(rec)
		return clone(rec), &apperr.ExtractionError{File: originalName, Err: err}
	}
	rec.ID = hashBytes(data)
	rec.FileSize = int64(len(data))

	text, err := ix.extractor.Extract(ctx, path, fileType)
	if err != nil {
		rec.Error = err.Error()
		ix.put(rec)
		ix.log.WithFields(logrus.Fields{"file": originalName, "type": fileType}).
			Warnf("text extraction failed: %v", err)
		return clone(rec), &apperr.ExtractionError{File: originalName, Err: err}
	}

	rec.ExtractedText = text
	rec.TextLength = len([]rune(text))
	rec.WordCount = wordCount(text)
	rec.Summary = Summarize(text, SummaryMaxLength)
	if kw := ExtractKeywords(text, MaxKeywords); kw != nil {
		rec.Keywords = kw
	}
	ix.put(rec)
	return clone(rec), nil
}

func (ix *Index) put(rec *models.ProcessedFile) {
	ix.mu.Lock()
	prev, exists := ix.files[rec.ID]
	if !exists {
		ix.order = append(ix.order, rec.ID)
	}
	ix.files[rec.ID] = rec
	ix.mu.Unlock()
	// A content ID owns exactly one backing file.
	if exists && prev.FilePath != rec.FilePath {
		ix.removeBackingFile(prev)
	}
}

// Get returns a copy of the record with the given id.
func (ix *Index) Get(id string) (*models.ProcessedFile, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	rec, ok := ix.files[id]
	if !ok {
		return nil, false
	}
	return clone(rec), true
}

// List returns every record in insertion order.
func (ix *Index) List() []*models.ProcessedFile {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]*models.ProcessedFile, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, clone(ix.files[id]))
	}
	return out
}

// Len reports how many records are held.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.files)
}

// Query returns records whose keywords contain, or whose text includes, any of keywords.
func (ix *Index) Query(keywords []string) []*models.ProcessedFile {
	wanted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		wanted = append(wanted, strings.ToLower(k))
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []*models.ProcessedFile
	for _, id := range ix.order {
		rec := ix.files[id]
		text := strings.ToLower(rec.ExtractedText)
		for _, k := range wanted {
			if hasKeyword(rec.Keywords, k) || strings.Contains(text, k) {
				out = append(out, clone(rec))
				break
			}
		}
	}
	return out
}

// ScoredFile pairs a record with its relevance to a query.
type ScoredFile struct {
	File  *models.ProcessedFile
	Score int
}

// RelevantFiles ranks the successfully processed records against query and
// returns at most maxFiles with a positive score.
func (ix *Index) RelevantFiles(query string, maxFiles int) []ScoredFile {
	tokens := strings.Fields(strings.ToLower(query))

	ix.mu.RLock()
	var scored []ScoredFile
	for _, id := range ix.order {
		rec := ix.files[id]
		if rec.Failed() {
			continue
		}
		text := strings.ToLower(rec.ExtractedText)
		score := 0
		for _, tok := range tokens {
			score += strings.Count(text, tok)
			if hasKeyword(rec.Keywords, tok) {
				score += keywordBonus
			}
		}
		if score > 0 {
			scored = append(scored, ScoredFile{File: clone(rec), Score: score})
		}
	}
	ix.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if maxFiles >= 0 && len(scored) > maxFiles {
		scored = scored[:maxFiles]
	}
	return scored
}

// ContextFor renders the summaries of the files most relevant to query.
func (ix *Index) ContextFor(query string, maxFiles int) string {
	return FormatContext(ix.RelevantFiles(query, maxFiles))
}

// FormatContext renders ranked files as labelled summary blocks.
func FormatContext(files []ScoredFile) string {
	var parts []string
	for _, sf := range files {
		body := sf.File.Summary
		if body == "" {
			body = truncateRunes(sf.File.ExtractedText, fallbackSnippet)
		}
		parts = append(parts, "=== From file: "+sf.File.OriginalFilename+" ===", body, "")
	}
	return strings.Join(parts, "\n")
}

// Delete removes the record and its backing file. It reports false when id is unknown.
func (ix *Index) Delete(id string) bool {
	ix.mu.Lock()
	rec, ok := ix.files[id]
	if ok {
		delete(ix.files, id)
		for i, existing := range ix.order {
			if existing == id {
				ix.order = append(ix.order[:i], ix.order[i+1:]...)
				break
			}
		}
	}
	ix.mu.Unlock()
	if !ok {
		return false
	}
	ix.removeBackingFile(rec)
	return true
}

func (ix *Index) removeBackingFile(rec *models.ProcessedFile) {
	if rec.FilePath == "" {
		return
	}
	if err := os.Remove(rec.FilePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		ix.log.WithField("file", rec.OriginalFilename).Warnf("remove backing file: %v", err)
	}
}

// Stats summarizes the index contents.
func (ix *Index) Stats() models.FileStats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	stats := models.FileStats{ByType: make(map[string]int)}
	for _, rec := range ix.files {
		stats.TotalFiles++
		if rec.Failed() {
			stats.FailedFiles++
		}
		stats.TotalBytes += rec.FileSize
		stats.TotalWords += rec.WordCount
		stats.ByType[rec.FileType]++
	}
	return stats
}

// FileType returns the lower-cased extension of name without the dot.
func FileType(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func hasKeyword(keywords []string, word string) bool {
	for _, k := range keywords {
		if strings.ToLower(k) == word {
			return true
		}
	}
	return false
}

func hashBytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func clone(rec *models.ProcessedFile) *models.ProcessedFile {
	if rec == nil {
		return nil
	}
	c := *rec
	c.Keywords = make([]string, len(rec.Keywords))
	copy(c.Keywords, rec.Keywords)
	return &c
}

type plainExtractor struct{}

func (plainExtractor) Extract(_ context.Context, path, fileType string) (string, error) {
	if fileType != "txt" && fileType != "md" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
