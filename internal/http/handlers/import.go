package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/cibics-tracking-backend/internal/clients/archive"
	"github.com/yungbote/cibics-tracking-backend/internal/http/response"
	"github.com/yungbote/cibics-tracking-backend/internal/importer"
	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
	"github.com/yungbote/cibics-tracking-backend/internal/services"
)

const defaultMaxUploadBytes int64 = 10 << 20

type ImportHandler struct {
	log            *logger.Logger
	importService  services.ImportService
	maxUploadBytes int64
}

func NewImportHandler(log *logger.Logger, importService services.ImportService, maxUploadBytes int64) *ImportHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &ImportHandler{
		log:            log.With("handler", "ImportHandler"),
		importService:  importService,
		maxUploadBytes: maxUploadBytes,
	}
}

type upload struct {
	name string
	body io.ReadCloser
}

// openUpload reads the multipart "file" field and rejects anything that is
// not an .xlsx workbook.
func (h *ImportHandler) openUpload(c *gin.Context) (*upload, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", fmt.Errorf("missing file: %w", err))
		return nil, false
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", errors.New("only .xlsx files are supported"))
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_file", err)
		return nil, false
	}
	return &upload{name: filepath.Base(fh.Filename), body: f}, true
}

func (h *ImportHandler) respondImportError(c *gin.Context, err error) {
	if importer.IsFileFormatError(err) {
		response.RespondError(c, http.StatusBadRequest, "invalid_workbook", err)
		return
	}
	response.RespondAPIError(c, err)
}

func (h *ImportHandler) Preview(c *gin.Context) {
	up, ok := h.openUpload(c)
	if !ok {
		return
	}
	defer up.body.Close()

	limit := queryInt(c, "preview_limit", 0)
	if n, err := strconv.Atoi(strings.TrimSpace(c.PostForm("preview_limit"))); err == nil {
		limit = n
	}
	res, err := h.importService.Preview(c.Request.Context(), up.body, limit)
	if err != nil {
		h.respondImportError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *ImportHandler) Upload(c *gin.Context) {
	h.commit(c, h.importService.CommitInsertOnly)
}

func (h *ImportHandler) Overwrite(c *gin.Context) {
	h.commit(c, h.importService.CommitOverwrite)
}

func (h *ImportHandler) commit(c *gin.Context, run func(ctx context.Context, r io.Reader, opts services.CommitOptions) (*services.CommitResult, error)) {
	up, ok := h.openUpload(c)
	if !ok {
		return
	}
	defer up.body.Close()

	res, err := run(c.Request.Context(), up.body, services.CommitOptions{
		FileName: up.name,
		ActorID:  actorID(c),
	})
	if err != nil {
		h.respondImportError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func (h *ImportHandler) Template(c *gin.Context) {
	raw, err := h.importService.Template()
	if err != nil {
		h.log.Error("Building import template failed", "error", err)
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="records_import_template.xlsx"`)
	c.Data(http.StatusOK, archive.XLSXContentType, raw)
}

func (h *ImportHandler) Runs(c *gin.Context) {
	runs, err := h.importService.RecentRuns(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}
