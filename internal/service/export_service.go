package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
	"github.com/noah-isme/student-roster-api/pkg/export"
)

const (
	exportBatchSize = 100
	exportMaxRows   = 10000
)

var exportHeaders = []string{"student_id", "firstname", "lastname", "nickname"}

type studentLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportService renders the roster, optionally narrowed by a search query,
// into downloadable files.
type ExportService struct {
	students  studentLister
	renderers map[dto.ExportFormat]renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with CSV, PDF and XLSX renderers.
func NewExportService(students studentLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students: students,
		renderers: map[dto.ExportFormat]renderer{
			dto.ExportCSV:  export.NewCSVExporter(),
			dto.ExportPDF:  export.NewPDFExporter(),
			dto.ExportXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// Export collects every matching student in store order and renders it.
func (s *ExportService) Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportFile, error) {
	format := req.Format
	if format == "" {
		format = dto.ExportCSV
	}
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}

	students, err := s.collect(ctx, strings.TrimSpace(req.Query))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students for export")
	}

	data := export.Dataset{Title: "Students", Headers: exportHeaders, Rows: make([]map[string]string, 0, len(students))}
	for _, st := range students {
		data.Rows = append(data.Rows, map[string]string{
			"student_id": st.StudentID,
			"firstname":  st.FirstName,
			"lastname":   st.LastName,
			"nickname":   st.Nickname,
		})
	}

	body, err := r.Render(data)
	if err != nil {
		s.logger.Error("render export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &dto.ExportFile{
		Filename:    fmt.Sprintf("students-%s.%s", s.now().UTC().Format("20060102-150405"), r.Extension()),
		ContentType: r.ContentType(),
		Body:        body,
	}, nil
}

func (s *ExportService) collect(ctx context.Context, query string) ([]models.Student, error) {
	var out []models.Student
	for page := 1; len(out) < exportMaxRows; page++ {
		batch, total, err := s.students.List(ctx, models.StudentFilter{Query: query, Page: page, Limit: exportBatchSize})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < exportBatchSize || len(out) >= total {
			break
		}
	}
	if len(out) > exportMaxRows {
		out = out[:exportMaxRows]
	}
	return out, nil
}
