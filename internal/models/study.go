package models

// Study carries the submission metadata rendered into the manifest documents
type Study struct {
	ID                int64  `json:"id"`
	StudyNumber       string `json:"study_number"`
	Title             string `json:"title"`
	Sponsor           string `json:"sponsor"`
	ApplicationNumber string `json:"application_number"`
	SubmissionType    string `json:"submission_type"`
	Sequence          string `json:"sequence"` // four digits, e.g. "0001"
	TemplateID        int64  `json:"template_id"`
}

// TemplateNode is a position in the study's active document template
type TemplateNode struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Title    string `json:"title"`
	Required bool   `json:"required"`
}

// StudyDocument is a document attached to a template node
type StudyDocument struct {
	ID        int64  `json:"id"`
	NodeID    int64  `json:"node_id"`
	NodeCode  string `json:"node_code"`
	NodeTitle string `json:"node_title"`
	FileName  string `json:"file_name"`
	Status    string `json:"status"`
}

// Document status constants
const (
	DocumentStatusDraft     = "DRAFT"
	DocumentStatusInReview  = "IN_REVIEW"
	DocumentStatusApproved  = "APPROVED"
	DocumentStatusPublished = "PUBLISHED"
	DocumentStatusRejected  = "REJECTED"
)

// IsApproved reports whether a document status counts toward node coverage
func IsApproved(status string) bool {
	return status == DocumentStatusApproved || status == DocumentStatusPublished
}

// Validation result severities stored by the collaborating validation pipeline
const (
	SeverityError   = "ERROR"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
)
