package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"veron/internal/apperr"
	"veron/internal/filecontext"
	"veron/internal/models"
)

const previewLength = 200

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type fileSearchRequest struct {
	Keywords []string `json:"keywords" binding:"required,min=1,max=50"`
}

// fileView is a file record without its full extracted text.
type fileView struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	FileType         string    `json:"file_type"`
	TextLength       int       `json:"text_length"`
	WordCount        int       `json:"word_count"`
	Summary          string    `json:"summary"`
	Keywords         []string  `json:"keywords"`
	TextPreview      string    `json:"text_preview"`
	ProcessedAt      time.Time `json:"processed_at"`
	Error            string    `json:"error,omitempty"`
}

func newFileView(f *models.ProcessedFile) fileView {
	preview := []rune(f.ExtractedText)
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	return fileView{
		ID:               f.ID,
		OriginalFilename: f.OriginalFilename,
		FileSize:         f.FileSize,
		FileType:         f.FileType,
		TextLength:       f.TextLength,
		WordCount:        f.WordCount,
		Summary:          f.Summary,
		Keywords:         f.Keywords,
		TextPreview:      string(preview),
		ProcessedAt:      f.ProcessedAt,
		Error:            f.Error,
	}
}

func fileViews(files []*models.ProcessedFile) []fileView {
	out := make([]fileView, 0, len(files))
	for _, f := range files {
		out = append(out, newFileView(f))
	}
	return out
}

func (h *Handler) uploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Server.MaxUploadBytes+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		h.fail(c, h.formFileError(err), "Invalid upload")
		return
	}

	rec, err := h.storeUpload(c, file)
	var extractErr *apperr.ExtractionError
	if err != nil && !errors.As(err, &extractErr) {
		h.fail(c, err, "Failed to store upload")
		return
	}
	data := gin.H{
		"file_id":           rec.ID,
		"original_filename": rec.OriginalFilename,
		"file_size":         rec.FileSize,
		"file_type":         rec.FileType,
		"word_count":        rec.WordCount,
		"text_length":       rec.TextLength,
		"summary":           rec.Summary,
		"keywords":          rec.Keywords,
		"processed_at":      rec.ProcessedAt,
		"message":           "File uploaded and processed successfully",
	}
	if extractErr != nil {
		// The record stays in the index so the client can inspect and delete it.
		_ = c.Error(err)
		data["processing_error"] = rec.Error
		data["message"] = "File uploaded but text extraction failed"
	}
	h.ok(c, data)
}

func (h *Handler) formFileError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("file", fmt.Sprintf("File too large. Maximum size is %d bytes.", h.cfg.Server.MaxUploadBytes))
	}
	return apperr.Validation("file", "No file provided.")
}

// storeUpload validates an uploaded file, saves it under the upload directory
// and indexes it. An *apperr.ExtractionError comes back with a non-nil record.
func (h *Handler) storeUpload(c *gin.Context, file *multipart.FileHeader) (*models.ProcessedFile, error) {
	maxBytes := h.cfg.Server.MaxUploadBytes
	if file.Filename == "" {
		return nil, apperr.Validation("file", "No file selected.")
	}
	if file.Size > maxBytes {
		return nil, apperr.Validation("file", fmt.Sprintf("File too large. Maximum size is %d bytes.", maxBytes))
	}
	fileType := filecontext.FileType(file.Filename)
	if !filecontext.SupportedTypes[fileType] {
		return nil, apperr.Validation("file", fmt.Sprintf("File type .%s is not allowed.", fileType))
	}

	destDir := h.cfg.Server.UploadDir
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	destPath := filepath.Join(destDir, uuid.NewString()+"_"+safeFilename(file.Filename))
	if err := c.SaveUploadedFile(file, destPath); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	return h.files.Process(c.Request.Context(), destPath, file.Filename)
}

func (h *Handler) listFiles(c *gin.Context) {
	files := h.files.List()
	h.ok(c, gin.H{
		"files": fileViews(files),
		"total": len(files),
	})
}

func (h *Handler) getFile(c *gin.Context) {
	rec, ok := h.files.Get(c.Param("id"))
	if !ok {
		h.fail(c, apperr.NotFound("file"), "File not found")
		return
	}
	h.ok(c, rec)
}

func (h *Handler) deleteFile(c *gin.Context) {
	id := c.Param("id")
	if !h.files.Delete(id) {
		h.fail(c, apperr.NotFound("file"), "File not found")
		return
	}
	h.ok(c, gin.H{
		"file_id": id,
		"message": "File deleted successfully",
	})
}

func (h *Handler) searchFiles(c *gin.Context) {
	var req fileSearchRequest
	if err := bind(c, &req); err != nil {
		h.fail(c, err, "Invalid request")
		return
	}
	files := h.files.Query(req.Keywords)
	h.ok(c, gin.H{
		"files":    fileViews(files),
		"total":    len(files),
		"keywords": req.Keywords,
	})
}

func (h *Handler) fileStats(c *gin.Context) {
	h.ok(c, h.files.Stats())
}

func (h *Handler) analyzeFile(c *gin.Context) {
	rec, ok := h.files.Get(c.Param("id"))
	if !ok {
		h.fail(c, apperr.NotFound("file"), "File not found")
		return
	}
	if strings.TrimSpace(rec.ExtractedText) == "" {
		h.fail(c, apperr.Validation("file", "File has no extracted text to analyze."), "Invalid request")
		return
	}
	analysis, err := h.assistant.AnalyzeDocument(c.Request.Context(), rec.ExtractedText, rec.OriginalFilename)
	if err != nil {
		h.fail(c, err, "Failed to analyze document. Please try again.")
		return
	}
	h.ok(c, gin.H{
		"file_id":           rec.ID,
		"original_filename": rec.OriginalFilename,
		"analysis":          analysis,
		"timestamp":         h.now().UTC(),
	})
}

func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(unsafeFilenameChars.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "upload"
	}
	return name
}
