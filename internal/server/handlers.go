package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bidmatch/internal"
	"bidmatch/internal/export"
	"bidmatch/internal/i18n"
	"bidmatch/internal/session"
	"bidmatch/internal/table"
)

const defaultPageSize = 10

// Handler exposes the session store over HTTP.
type Handler struct {
	store   *session.Store
	tr      *i18n.Store
	baseURL string
	log     zerolog.Logger
}

func NewHandler(store *session.Store, tr *i18n.Store, baseURL string, log zerolog.Logger) *Handler {
	return &Handler{store: store, tr: tr, baseURL: strings.TrimRight(baseURL, "/"), log: log}
}

// UploadBidFile receives the working spreadsheet and runs extraction.
func (h *Handler) UploadBidFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	if err := h.store.Extract(c.Request.Context(), header.Filename, f); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fileName": h.store.FileName(),
		"sheets":   h.store.SheetNames(),
		"selected": h.store.SelectedSheet(),
	})
}

// ClearBidFile drops the working file and everything derived from it.
func (h *Handler) ClearBidFile(c *gin.Context) {
	h.store.ClearWorkingFile()
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetSheets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sheets":   h.store.SheetNames(),
		"selected": h.store.SelectedSheet(),
	})
}

func (h *Handler) SelectSheet(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.store.SelectSheet(req.Name)
	c.JSON(http.StatusOK, gin.H{"selected": h.store.SelectedSheet()})
}

type productView struct {
	internal.Product
	CategoryPath string `json:"category_path"`
}

// GetProducts returns one page of the selected sheet's rows.
func (h *Handler) GetProducts(c *gin.Context) {
	page := queryInt(c, "page", 1)
	pageSize := queryInt(c, "pageSize", defaultPageSize)

	rows := h.store.Products()
	totalPages := table.TotalPages(len(rows), pageSize)
	page = table.ClampPage(page, totalPages)

	pageRows := table.Paginate(rows, pageSize, page)
	views := make([]productView, 0, len(pageRows))
	for _, row := range pageRows {
		views = append(views, productView{
			Product:      row,
			CategoryPath: table.CategoryPath(row.Categories, " > "),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"rows":       views,
		"page":       page,
		"pageSize":   pageSize,
		"totalPages": totalPages,
		"totalRows":  len(rows),
	})
}

// EditProduct replaces the row at :index on the selected sheet.
func (h *Handler) EditProduct(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	var row internal.Product
	if err := c.ShouldBindJSON(&row); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.store.EditRow(index, row); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteProduct removes the row at :index on the selected sheet.
func (h *Handler) DeleteProduct(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	if err := h.store.DeleteRow(index); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListReferenceFiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": h.store.ReferenceFiles()})
}

// UploadReferenceFiles ingests provider price lists and rebuilds the
// canonical pricing dataset from the whole retained batch.
func (h *Handler) UploadReferenceFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'files' is required"})
		return
	}

	files := make([]session.NamedFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		files = append(files, session.NamedFile{Name: header.Filename, Data: buf.Bytes()})
	}

	if err := h.store.IngestReferenceFiles(c.Request.Context(), files); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": h.store.ReferenceFiles()})
}

func (h *Handler) DeleteReferenceFile(c *gin.Context) {
	if !h.store.RemoveReferenceFile(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "reference file not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Analyze matches the selected sheet's rows against the pricing dataset.
func (h *Handler) Analyze(c *gin.Context) {
	resp, err := h.store.Analyze(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	out := gin.H{"items": h.store.Analyzed()}
	if resp.CSVURL != nil {
		out["csv_url"] = h.absoluteURL(*resp.CSVURL)
	}
	c.JSON(http.StatusOK, out)
}

// DownloadCSV streams the analyzed rows as a CSV attachment.
func (h *Handler) DownloadCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.store.WriteCSV(&buf); err != nil {
		h.fail(c, err)
		return
	}
	name := export.FileName(time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// DownloadXLSX streams the analyzed rows as a workbook attachment.
func (h *Handler) DownloadXLSX(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.store.WriteXLSX(&buf); err != nil {
		h.fail(c, err)
		return
	}
	name := strings.TrimSuffix(export.FileName(time.Now()), ".csv") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *Handler) GetLanguage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"language": h.tr.Language()})
}

func (h *Handler) SetLanguage(c *gin.Context) {
	var req struct {
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.tr.SetLanguage(i18n.Language(req.Language)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": h.tr.Language()})
}

// absoluteURL resolves backend-relative download paths against the pricing
// API base URL so the browser can fetch them directly.
func (h *Handler) absoluteURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return h.baseURL + path
}

// fail maps store errors onto HTTP statuses.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, session.ErrInvalidFile),
		errors.Is(err, session.ErrNoProducts),
		errors.Is(err, session.ErrNoReferenceData):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, session.ErrIndexOutOfRange),
		errors.Is(err, session.ErrNoAnalysis):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	value := c.Query(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
