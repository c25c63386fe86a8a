package dto

import (
	"strings"

	"github.com/noah-isme/student-roster-api/internal/models"
)

// StudentPayload is the body accepted by create and update.
type StudentPayload struct {
	StudentID string `json:"student_id" validate:"required,max=64"`
	FirstName string `json:"firstname" validate:"required,max=128"`
	LastName  string `json:"lastname" validate:"max=128"`
	Nickname  string `json:"nickname" validate:"max=64"`
}

// Normalize trims surrounding whitespace so blank values fail validation.
func (p StudentPayload) Normalize() StudentPayload {
	return StudentPayload{
		StudentID: strings.TrimSpace(p.StudentID),
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  strings.TrimSpace(p.LastName),
		Nickname:  strings.TrimSpace(p.Nickname),
	}
}

// Apply copies the payload fields onto the student, leaving its ID untouched.
func (p StudentPayload) Apply(s *models.Student) {
	s.StudentID = p.StudentID
	s.FirstName = p.FirstName
	s.LastName = p.LastName
	s.Nickname = p.Nickname
}

// StudentPage is the response of list and search.
type StudentPage struct {
	Students   []models.Student  `json:"students"`
	Pagination models.Pagination `json:"pagination"`
}

// ExportFormat names a supported roster export format.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportPDF  ExportFormat = "pdf"
	ExportXLSX ExportFormat = "xlsx"
)

// ExportRequest selects the records and format of a roster export.
type ExportRequest struct {
	Query  string       `form:"q"`
	Format ExportFormat `form:"format"`
}

// ExportFile is a rendered roster export.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
