package models

import "time"

// ProcessedFile represents an uploaded document after text extraction.
type ProcessedFile struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"file_path"`
	FileSize         int64     `json:"file_size"`
	FileType         string    `json:"file_type"`
	ExtractedText    string    `json:"extracted_text"`
	TextLength       int       `json:"text_length"`
	WordCount        int       `json:"word_count"`
	Summary          string    `json:"summary"`
	Keywords         []string  `json:"keywords"`
	ProcessedAt      time.Time `json:"processed_at"`
	Error            string    `json:"error,omitempty"`
}

// Failed reports whether extraction failed for this file.
func (f *ProcessedFile) Failed() bool {
	return f != nil && f.Error != ""
}

// FileStats aggregates the index contents.
type FileStats struct {
	TotalFiles  int            `json:"total_files"`
	FailedFiles int            `json:"failed_files"`
	TotalBytes  int64          `json:"total_bytes"`
	TotalWords  int            `json:"total_words"`
	ByType      map[string]int `json:"by_type"`
}
