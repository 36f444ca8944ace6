// Package readiness decides whether a study may be packaged for submission.
package readiness

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/submission-packager/internal/models"
	"go.uber.org/zap"
)

var (
	ErrInvalidStudyID = errors.New("invalid study id")
	ErrStudyNotFound  = errors.New("study not found")
)

// StudySource supplies the study data the gate evaluates
type StudySource interface {
	GetStudy(ctx context.Context, studyID int64) (*models.Study, error)
	ListTemplateNodes(ctx context.Context, templateID int64) ([]*models.TemplateNode, error)
	ListDocuments(ctx context.Context, studyID int64) ([]*models.StudyDocument, error)
	CountBlockingValidationResults(ctx context.Context, studyID int64) (int, error)
	CountBlockingAnnotations(ctx context.Context, studyID int64) (int, error)
}

// MissingNode is a required template node without an approved document
type MissingNode struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	NodeID int64  `json:"node_id"`
}

// PendingDocument is a document that has not reached an approved state
type PendingDocument struct {
	DocumentID int64  `json:"document_id"`
	FileName   string `json:"file_name"`
	Status     string `json:"status"`
	NodeCode   string `json:"node_code"`
	NodeTitle  string `json:"node_title"`
}

// Status is the readiness verdict. It is recomputed on every call.
type Status struct {
	Ready                 bool              `json:"ready"`
	MissingRequired       []MissingNode     `json:"missing_required"`
	PendingApproval       []PendingDocument `json:"pending_approval"`
	ValidationErrors      int               `json:"validation_errors"`
	UnresolvedAnnotations int               `json:"unresolved_annotations"`
	TotalFiles            int               `json:"total_files"`
	TotalRequiredNodes    int               `json:"total_required_nodes"`
}

// Reasons summarizes why the study is not ready
func (s *Status) Reasons() []string {
	var reasons []string
	if n := len(s.MissingRequired); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d required section(s) have no approved document", n))
	}
	if n := len(s.PendingApproval); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d document(s) pending approval", n))
	}
	if s.ValidationErrors > 0 {
		reasons = append(reasons, fmt.Sprintf("%d unresolved validation error(s)", s.ValidationErrors))
	}
	if s.UnresolvedAnnotations > 0 {
		reasons = append(reasons, fmt.Sprintf("%d blocking review comment(s)", s.UnresolvedAnnotations))
	}
	return reasons
}

// Checker computes readiness from a StudySource
type Checker struct {
	source StudySource
	logger *zap.Logger
}

// NewChecker creates a new readiness checker
func NewChecker(source StudySource, logger *zap.Logger) *Checker {
	return &Checker{source: source, logger: logger}
}

// CheckReadiness aggregates coverage, approvals and blocking counts into one verdict
func (c *Checker) CheckReadiness(ctx context.Context, studyID int64) (*Status, error) {
	if studyID <= 0 {
		return nil, ErrInvalidStudyID
	}

	study, err := c.source.GetStudy(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load study %d: %w", studyID, err)
	}
	if study == nil {
		return nil, fmt.Errorf("%w: %d", ErrStudyNotFound, studyID)
	}

	nodes, err := c.source.ListTemplateNodes(ctx, study.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list template nodes: %w", err)
	}
	documents, err := c.source.ListDocuments(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	validationErrors, err := c.source.CountBlockingValidationResults(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count validation errors: %w", err)
	}
	annotations, err := c.source.CountBlockingAnnotations(ctx, studyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count annotations: %w", err)
	}

	status := Evaluate(nodes, documents, validationErrors, annotations)

	c.logger.Info("Readiness computed",
		zap.Int64("study_id", studyID),
		zap.Bool("ready", status.Ready),
		zap.Int("missing_required", len(status.MissingRequired)),
		zap.Int("pending_approval", len(status.PendingApproval)),
		zap.Int("validation_errors", status.ValidationErrors),
		zap.Int("unresolved_annotations", status.UnresolvedAnnotations))

	return status, nil
}

// Evaluate applies the readiness rules to already loaded study data
func Evaluate(nodes []*models.TemplateNode, documents []*models.StudyDocument, validationErrors, annotations int) *Status {
	status := &Status{
		MissingRequired:       []MissingNode{},
		PendingApproval:       []PendingDocument{},
		ValidationErrors:      validationErrors,
		UnresolvedAnnotations: annotations,
		TotalFiles:            len(documents),
	}

	covered := make(map[int64]bool)
	for _, doc := range documents {
		if models.IsApproved(doc.Status) {
			covered[doc.NodeID] = true
			continue
		}
		status.PendingApproval = append(status.PendingApproval, PendingDocument{
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			Status:     doc.Status,
			NodeCode:   doc.NodeCode,
			NodeTitle:  doc.NodeTitle,
		})
	}

	for _, node := range nodes {
		if !node.Required {
			continue
		}
		status.TotalRequiredNodes++
		if !covered[node.ID] {
			status.MissingRequired = append(status.MissingRequired, MissingNode{
				Code:   node.Code,
				Title:  node.Title,
				NodeID: node.ID,
			})
		}
	}

	status.Ready = len(status.MissingRequired) == 0 &&
		len(status.PendingApproval) == 0 &&
		status.ValidationErrors == 0 &&
		status.UnresolvedAnnotations == 0
	return status
}
