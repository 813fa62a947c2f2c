package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/docindex/docindex/internal/document"
	"github.com/docindex/docindex/internal/document/service"
	"github.com/docindex/docindex/internal/locks"
	"github.com/gin-gonic/gin"
)

// RegisterDocumentRoutes mounts the upload, search and maintenance endpoints.
// JSON is written with PureJSON so non-ASCII text stays verbatim.
func RegisterDocumentRoutes(r gin.IRouter, svc service.Service) {
	h := &documentHandler{svc: svc}
	r.POST("/upload", h.upload)
	r.GET("/search", h.search)
	r.POST("/fix-index", h.fixIndex)
	r.DELETE("/delete-by-keyword", h.deleteByKeyword)
	r.DELETE("/delete-old-documents", h.deleteOldDocumentsByDays)
	r.DELETE("/delete-old-documents-years", h.deleteOldDocumentsByYears)
	r.DELETE("/reset-index", h.resetIndex)
}

type documentHandler struct {
	svc service.Service
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, locks.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error, message string, extra gin.H) {
	status := statusFor(err)
	body := gin.H{"message": message, "error": err.Error()}
	if status == http.StatusConflict {
		body["message"] = "Another maintenance operation is in progress"
	}
	for k, v := range extra {
		body[k] = v
	}
	c.PureJSON(status, body)
}

func (h *documentHandler) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.PureJSON(http.StatusRequestEntityTooLarge, gin.H{"message": "Upload exceeds the maximum allowed size"})
			return
		}
		c.PureJSON(http.StatusBadRequest, gin.H{"message": "No files uploaded", "error": err.Error()})
		return
	}
	var headers []*multipart.FileHeader
	for _, field := range []string{"files", "files[]"} {
		headers = append(headers, form.File[field]...)
	}
	if len(headers) == 0 {
		c.PureJSON(http.StatusBadRequest, gin.H{"message": "No files uploaded"})
		return
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, service.Upload{
			FileName: fh.Filename,
			Size:     fh.Size,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	results := h.svc.IngestAll(c.Request.Context(), uploads)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		c.PureJSON(http.StatusMultiStatus, gin.H{
			"message": fmt.Sprintf("%d of %d files could not be indexed", failed, len(results)),
			"results": results,
		})
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"message": "Files uploaded and indexed successfully", "results": results})
}

func (h *documentHandler) search(c *gin.Context) {
	results, err := h.svc.Search(c.Request.Context(), c.Query("keyword"))
	if err != nil {
		fail(c, err, "Search failed", nil)
		return
	}
	c.PureJSON(http.StatusOK, results)
}

func (h *documentHandler) fixIndex(c *gin.Context) {
	report, err := h.svc.RepairDuplicates(c.Request.Context())
	if err != nil {
		fail(c, err, "Duplicate repair failed", gin.H{"removed": report.Removed, "skipped": report.Skipped})
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"message": "Duplicate documents removed from index and database",
		"removed": report.Removed,
		"skipped": report.Skipped,
	})
}

func (h *documentHandler) deleteByKeyword(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.PureJSON(http.StatusBadRequest, gin.H{"message": "Keyword is required"})
		return
	}
	n, err := h.svc.PurgeByKeyword(c.Request.Context(), keyword)
	if err != nil {
		fail(c, err, "Keyword purge failed", gin.H{"deleted": n})
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%d document(s) containing '%s' have been deleted", n, keyword),
		"deleted": n,
	})
}

func (h *documentHandler) deleteOldDocumentsByDays(c *gin.Context) {
	h.deleteOld(c, "day", "days", service.DaysBefore)
}

func (h *documentHandler) deleteOldDocumentsByYears(c *gin.Context) {
	h.deleteOld(c, "years", "years", service.YearsBefore)
}

func (h *documentHandler) deleteOld(c *gin.Context, param, unit string, cutoffFor func(today time.Time, n int) time.Time) {
	n, ok := positiveQuery(c, param, false)
	if !ok {
		c.PureJSON(http.StatusBadRequest, gin.H{"message": param + " must be a positive number"})
		return
	}
	batchSize, ok := positiveQuery(c, "batch_size", true)
	if !ok {
		c.PureJSON(http.StatusBadRequest, gin.H{"message": "batch_size must be a positive number"})
		return
	}
	cutoff := cutoffFor(h.svc.Today(), n)
	deleted, err := h.svc.PurgeOlderThan(c.Request.Context(), cutoff, batchSize)
	if err != nil {
		fail(c, err, "An error occurred during cleanup", gin.H{"deleted": deleted})
		return
	}
	c.PureJSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%d documents older than %d %s have been deleted", deleted, n, unit),
		"deleted": deleted,
		"cutoff":  cutoff.Format(document.DateLayout),
	})
}

// positiveQuery parses a positive integer query parameter. A missing optional
// parameter yields 0.
func positiveQuery(c *gin.Context, name string, optional bool) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present || raw == "" {
		return 0, optional
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func (h *documentHandler) resetIndex(c *gin.Context) {
	if err := h.svc.ResetIndex(c.Request.Context()); err != nil {
		fail(c, err, "Index reset failed", nil)
		return
	}
	c.PureJSON(http.StatusOK, gin.H{"message": "Search index has been reset"})
}
