package document

import (
	"path/filepath"
	"strings"
	"time"
)

// DateLayout is the calendar-date layout used for indexed_at outside the store.
const DateLayout = "2006-01-02"

// Document is the indexed unit: one uploaded file, its detected type and the
// normalized text extracted from it. FileName is the natural upsert key.
type Document struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Title     string    `json:"title" bson:"title"`
	FileName  string    `json:"file_name" bson:"fileName"`
	FileSize  int64     `json:"file_size" bson:"fileSize"`
	MIMEType  string    `json:"mime_type" bson:"mimeType"`
	Content   string    `json:"content" bson:"content"`
	IndexedAt time.Time `json:"indexed_at" bson:"indexedAt"`
}

// Summary is the search-result projection of a Document. Content holds a
// bounded preview, not the full text.
type Summary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MIMEType string `json:"mime_type"`
	Content  string `json:"content"`
}

// Metadata is the upload-log record written for every newly created document.
type Metadata struct {
	Title     string `json:"title"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	MIMEType  string `json:"mime_type"`
	Content   string `json:"content"`
	IndexedAt string `json:"indexed_at"`
}

// Metadata returns the upload-log view of d.
func (d *Document) Metadata() Metadata {
	return Metadata{
		Title:     d.Title,
		FileName:  d.FileName,
		FileSize:  d.FileSize,
		MIMEType:  d.MIMEType,
		Content:   d.Content,
		IndexedAt: d.IndexedAt.Format(DateLayout),
	}
}

// TitleFromFileName strips the final extension: "report.v2.pdf" -> "report.v2".
func TitleFromFileName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extension returns the lower-cased extension without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
