package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"veron/internal/apperr"
)

const (
	maxBatchFiles      = 5
	defaultSearchLimit = 5
	maxSearchLimit     = 20
	defaultCategory    = "general"
)

type batchResult struct {
	OriginalFilename string   `json:"original_filename"`
	FileID           string   `json:"file_id,omitempty"`
	Status           string   `json:"status"`
	Error            string   `json:"error,omitempty"`
	WordCount        int      `json:"word_count"`
	Keywords         []string `json:"keywords,omitempty"`
	Analysis         string   `json:"analysis,omitempty"`
}

type searchHit struct {
	fileView
	Score int `json:"score"`
}

// knowledgeUpload indexes up to five files from the "files" form field and
// analyzes each one that yields text. Per-file failures are reported inline.
func (h *Handler) knowledgeUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBatchFiles*h.cfg.Server.MaxUploadBytes+1<<20)
	form, err := c.MultipartForm()
	if err != nil {
		h.fail(c, apperr.Validation("files", "No files uploaded."), "Invalid upload")
		return
	}
	files := form.File["files"]
	switch {
	case len(files) == 0:
		h.fail(c, apperr.Validation("files", "No files uploaded."), "Invalid upload")
		return
	case len(files) > maxBatchFiles:
		h.fail(c, apperr.Validation("files", fmt.Sprintf("Maximum %d files allowed.", maxBatchFiles)), "Invalid upload")
		return
	}
	category := strings.TrimSpace(c.PostForm("category"))
	if category == "" {
		category = defaultCategory
	}

	results := make([]batchResult, 0, len(files))
	processed := 0
	for _, fh := range files {
		res := batchResult{OriginalFilename: fh.Filename, Status: "failed"}
		rec, err := h.storeUpload(c, fh)
		var ve *apperr.ValidationError
		switch {
		case errors.As(err, &ve):
			res.Error = ve.Fields["file"]
		case err != nil && rec == nil:
			_ = c.Error(err)
			res.Error = "Failed to store file."
		case err != nil:
			_ = c.Error(err)
			res.FileID = rec.ID
			res.Error = rec.Error
		default:
			res.FileID = rec.ID
			res.Status = "processed"
			res.WordCount = rec.WordCount
			res.Keywords = rec.Keywords
			processed++
			if strings.TrimSpace(rec.ExtractedText) != "" {
				analysis, err := h.assistant.AnalyzeDocument(c.Request.Context(), rec.ExtractedText, rec.OriginalFilename)
				if err != nil {
					h.log.WithField("file", rec.OriginalFilename).Warnf("document analysis failed: %v", err)
				}
				res.Analysis = analysis
			}
		}
		results = append(results, res)
	}

	h.ok(c, gin.H{
		"files":       results,
		"category":    category,
		"description": c.PostForm("description"),
		"message":     fmt.Sprintf("Successfully processed %d of %d files", processed, len(files)),
	})
}

// knowledgeSearch ranks indexed files against a free-text query.
func (h *Handler) knowledgeSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		h.fail(c, apperr.Validation("query", "Search query is required."), "Invalid request")
		return
	}
	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchLimit {
			h.fail(c, apperr.Validation("limit", fmt.Sprintf("Must be between 1 and %d.", maxSearchLimit)), "Invalid request")
			return
		}
		limit = n
	}

	scored := h.files.RelevantFiles(query, limit)
	hits := make([]searchHit, 0, len(scored))
	for _, sf := range scored {
		hits = append(hits, searchHit{fileView: newFileView(sf.File), Score: sf.Score})
	}
	h.ok(c, gin.H{
		"results": hits,
		"query":   query,
		"total":   len(hits),
	})
}
