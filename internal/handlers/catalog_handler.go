package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ohong/poof/internal/middleware"
	"github.com/ohong/poof/internal/models"
	"github.com/ohong/poof/internal/services"
	"github.com/ohong/poof/pkg/validation"
)

type CatalogHandler struct {
	uploadService     *services.UploadService
	processingService *services.ProcessingService
	catalogService    *services.CatalogService
	logger            *slog.Logger
}

func NewCatalogHandler(
	uploadService *services.UploadService,
	processingService *services.ProcessingService,
	catalogService *services.CatalogService,
	logger *slog.Logger,
) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{
		uploadService:     uploadService,
		processingService: processingService,
		catalogService:    catalogService,
		logger:            logger,
	}
}

// UploadImages stores up to 10 originals for the caller
// POST /upload
// Multipart form: images (repeated)
func (h *CatalogHandler) UploadImages(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var headers []*multipart.FileHeader
	if form, err := c.MultipartForm(); err == nil {
		headers = form.File["images"]
	}
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		return
	}
	if len(headers) > validation.MaxFilesPerUpload {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Maximum 10 files allowed"})
		return
	}

	files := make([]services.UploadFile, len(headers))
	for i, fh := range headers {
		files[i] = services.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	result, err := h.uploadService.Intake(c.Request.Context(), ownerID, files)
	if err != nil {
		var batchErr *services.BatchError
		switch {
		case errors.As(err, &batchErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": "All uploads failed", "details": batchErr.Details})
		case errors.Is(err, services.ErrNoFiles):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No files provided"})
		case errors.Is(err, services.ErrTooManyFiles):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Maximum 10 files allowed"})
		default:
			h.logger.Error("upload failed", "owner_id", ownerID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

type processRequest struct {
	Uploads []services.UploadReference `json:"uploads"`
}

// ProcessUploads turns stored originals into catalog entries
// POST /process
// Body: {"uploads": [{"id": "...", "originalUrl": "..."}]}
func (h *CatalogHandler) ProcessUploads(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "objects": []models.CatalogEntry{}})
		return
	}

	result, err := h.processingService.Process(c.Request.Context(), ownerID, req.Uploads)
	if err != nil {
		var batchErr *services.BatchError
		switch {
		case errors.Is(err, services.ErrNoUploads):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No uploads provided", "objects": []models.CatalogEntry{}})
		case errors.Is(err, services.ErrTooManyUploads):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Maximum 10 uploads allowed", "objects": []models.CatalogEntry{}})
		case errors.Is(err, services.ErrInvalidReference):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload reference", "objects": []models.CatalogEntry{}})
		case errors.As(err, &batchErr):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process uploads", "details": batchErr.Details})
		default:
			h.logger.Error("process failed", "owner_id", ownerID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process uploads"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetActive lists the caller's active objects, newest first
// GET /objects
func (h *CatalogHandler) GetActive(c *gin.Context) {
	h.list(c, h.catalogService.ListActive)
}

// GetArchive lists the caller's sold, donated and tossed objects
// GET /objects/archive
func (h *CatalogHandler) GetArchive(c *gin.Context) {
	h.list(c, h.catalogService.ListArchive)
}

func (h *CatalogHandler) list(c *gin.Context, fetch func(context.Context, string) ([]models.CatalogEntry, error)) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	objects, err := fetch(c.Request.Context(), ownerID)
	if err != nil {
		h.logger.Error("list objects failed", "owner_id", ownerID, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch objects"})
		return
	}
	if objects == nil {
		objects = []models.CatalogEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"objects": objects})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves one of the caller's objects between lists
// PATCH /objects/:id
// Body: {"status": "sold" | "donated" | "tossed" | "active"}
func (h *CatalogHandler) UpdateStatus(c *gin.Context) {
	ownerID, ok := middleware.OwnerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidStatusMessage})
		return
	}
	if _, err := models.ParseStatus(req.Status); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidStatusMessage})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Object not found"})
		return
	}

	entry, err := h.catalogService.UpdateStatus(c.Request.Context(), ownerID, id, req.Status)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"object": entry})
	case errors.Is(err, services.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidStatusMessage})
	case errors.Is(err, services.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Object not found"})
	case errors.Is(err, services.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
	default:
		h.logger.Error("update status failed", "owner_id", ownerID, "object_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update object"})
	}
}

const invalidStatusMessage = "Invalid status. Must be one of: active, sold, donated, tossed"
