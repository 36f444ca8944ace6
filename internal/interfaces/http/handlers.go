package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/submission-packager/internal/ectd"
	"github.com/garyjia/submission-packager/internal/models"
	"github.com/garyjia/submission-packager/internal/packager"
	"github.com/garyjia/submission-packager/internal/readiness"
	"github.com/garyjia/submission-packager/internal/storage"
	"github.com/garyjia/submission-packager/pkg/utils"
)

// Version is reported by the health endpoint
var Version = "dev"

// PackageExporter builds archives
type PackageExporter interface {
	ExportPackage(ctx context.Context, studyID int64, opts packager.ExportOptions) (*packager.ExportResult, error)
	GetPackageZipPath(studyID int64, packageID string) (string, error)
	ExportExists(studyID int64, packageID string) bool
}

// ReadinessService computes the readiness gate
type ReadinessService interface {
	CheckReadiness(ctx context.Context, studyID int64) (*readiness.Status, error)
}

// ExportCatalog lists and removes stored archives
type ExportCatalog interface {
	ListExports(studyID int64) ([]storage.ExportInfo, error)
	ReadManifest(studyID int64, packageID string) (*models.PackageManifest, error)
	DeletePackage(studyID int64, packageID string) error
}

// HealthChecker reports backing store health
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	exporter  PackageExporter
	readiness ReadinessService
	catalog   ExportCatalog
	health    HealthChecker
	logger    Logger
}

// NewHandlers creates a new Handlers instance. health may be nil.
func NewHandlers(
	exporter PackageExporter,
	readiness ReadinessService,
	catalog ExportCatalog,
	health HealthChecker,
	logger Logger,
) *Handlers {
	return &Handlers{
		exporter:  exporter,
		readiness: readiness,
		catalog:   catalog,
		health:    health,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ReadinessResponse wraps the gate status with its human-readable reasons
type ReadinessResponse struct {
	StudyID int64             `json:"study_id"`
	Status  *readiness.Status `json:"status"`
	Reasons []string          `json:"reasons"`
}

// ExportRequest is the optional body of POST /exports
type ExportRequest struct {
	Force bool `json:"force"`
}

// ValidateXMLRequest carries manifest documents to validate without exporting
type ValidateXMLRequest struct {
	IndexXML               string `json:"index_xml" binding:"required"`
	RegionalXML            string `json:"regional_xml" binding:"required"`
	SkipChecksumValidation bool   `json:"skip_checksum_validation"`
}

// ExportDetailResponse is one stored archive plus its manifest sidecar
type ExportDetailResponse struct {
	PackageID string                  `json:"package_id"`
	Manifest  *models.PackageManifest `json:"manifest"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if h.health != nil {
		if err := h.health.Health(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, Response{
		Success: code == http.StatusOK,
		Data: HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// GetReadiness handles GET /api/studies/:id/readiness
func (h *Handlers) GetReadiness(c *gin.Context) {
	studyID, ok := h.studyID(c)
	if !ok {
		return
	}

	status, err := h.readiness.CheckReadiness(c.Request.Context(), studyID)
	if err != nil {
		h.respondError(c, "Failed to compute readiness", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: ReadinessResponse{
			StudyID: studyID,
			Status:  status,
			Reasons: status.Reasons(),
		},
	})
}

// ExportPackage handles POST /api/studies/:id/exports
func (h *Handlers) ExportPackage(c *gin.Context) {
	studyID, ok := h.studyID(c)
	if !ok {
		return
	}

	var req ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("Invalid export request", "study_id", studyID, "error", err)
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
			return
		}
	}
	if c.Query("force") == "true" {
		req.Force = true
	}

	result, err := h.exporter.ExportPackage(c.Request.Context(), studyID, packager.ExportOptions{Force: req.Force})
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.logger.Error("Export failed", "study_id", studyID, "error", err)
		}
		c.JSON(code, Response{Success: false, Data: result, Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: result})
}

// ListExports handles GET /api/studies/:id/exports
func (h *Handlers) ListExports(c *gin.Context) {
	studyID, ok := h.studyID(c)
	if !ok {
		return
	}

	exports, err := h.catalog.ListExports(studyID)
	if err != nil {
		h.respondError(c, "Failed to list exports", err)
		return
	}
	if exports == nil {
		exports = []storage.ExportInfo{}
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: exports})
}

// GetExport handles GET /api/studies/:id/exports/:packageId
func (h *Handlers) GetExport(c *gin.Context) {
	studyID, packageID, ok := h.packageRef(c)
	if !ok {
		return
	}

	manifest, err := h.catalog.ReadManifest(studyID, packageID)
	if err != nil {
		h.respondError(c, "Failed to read manifest", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ExportDetailResponse{PackageID: packageID, Manifest: manifest},
	})
}

// DownloadExport handles GET /api/studies/:id/exports/:packageId/download
func (h *Handlers) DownloadExport(c *gin.Context) {
	studyID, packageID, ok := h.packageRef(c)
	if !ok {
		return
	}

	if !h.exporter.ExportExists(studyID, packageID) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: storage.ErrPackageNotFound.Error()})
		return
	}
	path, err := h.exporter.GetPackageZipPath(studyID, packageID)
	if err != nil {
		h.respondError(c, "Failed to resolve package path", err)
		return
	}

	c.FileAttachment(path, packageID+".zip")
}

// DeleteExport handles DELETE /api/studies/:id/exports/:packageId
func (h *Handlers) DeleteExport(c *gin.Context) {
	studyID, packageID, ok := h.packageRef(c)
	if !ok {
		return
	}

	if err := h.catalog.DeletePackage(studyID, packageID); err != nil {
		h.respondError(c, "Failed to delete package", err)
		return
	}

	h.logger.Info("Package deleted", "study_id", studyID, "package_id", packageID)
	c.JSON(http.StatusOK, Response{Success: true})
}

// ValidateXML handles POST /api/validate/xml
func (h *Handlers) ValidateXML(c *gin.Context) {
	var req ValidateXMLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "index_xml and regional_xml are required"})
		return
	}

	result := ectd.ValidateEctdXML(req.IndexXML, req.RegionalXML, ectd.IndexOptions{
		SkipChecksumValidation: req.SkipChecksumValidation,
	})

	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func (h *Handlers) studyID(c *gin.Context) (int64, bool) {
	id, err := utils.ParseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: readiness.ErrInvalidStudyID.Error()})
		return 0, false
	}
	return id, true
}

func (h *Handlers) packageRef(c *gin.Context) (int64, string, bool) {
	studyID, ok := h.studyID(c)
	if !ok {
		return 0, "", false
	}
	packageID := c.Param("packageId")
	if err := utils.ValidatePackageID(packageID); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: storage.ErrInvalidPackageID.Error()})
		return 0, "", false
	}
	return studyID, packageID, true
}

func (h *Handlers) respondError(c *gin.Context, msg string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(code, Response{Success: false, Error: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, readiness.ErrInvalidStudyID),
		errors.Is(err, storage.ErrInvalidPackageID),
		errors.Is(err, packager.ErrDuplicateTarget),
		errors.Is(err, packager.ErrInvalidTargetPath):
		return http.StatusBadRequest
	case errors.Is(err, readiness.ErrStudyNotFound),
		errors.Is(err, storage.ErrPackageNotFound):
		return http.StatusNotFound
	case errors.Is(err, packager.ErrNotReady),
		errors.Is(err, storage.ErrStudyLocked):
		return http.StatusConflict
	case errors.Is(err, packager.ErrNoFiles):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
