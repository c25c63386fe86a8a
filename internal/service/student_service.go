package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

const (
	studentCachePattern = "students:*"
	// studentCacheGeneration versions cached pages; it lies outside the
	// invalidation pattern.
	studentCacheGeneration = "roster:generation:students"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// StudentServiceConfig bounds the page sizes served by list and search.
type StudentServiceConfig struct {
	DefaultLimit int
	MaxLimit     int
}

// StudentService handles student use-cases.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	cache     *CacheService
	metrics   *MetricsService
	cfg       StudentServiceConfig
	logger    *zap.Logger
}

// NewStudentService constructs the student service. cache and metrics are optional.
func NewStudentService(repo studentRepository, validate *validator.Validate, cache *CacheService, metrics *MetricsService, cfg StudentServiceConfig, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(jsonFieldName)
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	return &StudentService{repo: repo, validator: validate, cache: cache, metrics: metrics, cfg: cfg, logger: logger}
}

// NormalizeFilter applies the page and limit defaults and caps the page so the
// offset cannot overflow. The query is trimmed.
func (s *StudentService) NormalizeFilter(filter models.StudentFilter) models.StudentFilter {
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = s.cfg.DefaultLimit
	}
	if filter.Limit > s.cfg.MaxLimit {
		filter.Limit = s.cfg.MaxLimit
	}
	// Keep (page-1)*limit representable for every store.
	if maxPage := math.MaxInt / filter.Limit; filter.Page > maxPage {
		filter.Page = maxPage
	}
	return filter
}

// List returns one page of all students.
func (s *StudentService) List(ctx context.Context, page, limit int) (*dto.StudentPage, error) {
	return s.read(ctx, models.StudentFilter{Page: page, Limit: limit})
}

// Search returns one page of students whose natural key or names contain
// query. A blank query behaves exactly like List.
func (s *StudentService) Search(ctx context.Context, query string, page, limit int) (*dto.StudentPage, error) {
	return s.read(ctx, models.StudentFilter{Query: query, Page: page, Limit: limit})
}

func (s *StudentService) read(ctx context.Context, filter models.StudentFilter) (*dto.StudentPage, error) {
	filter = s.NormalizeFilter(filter)

	// The generation is read before the store so a page filled concurrently
	// with a mutation lands under a key no later read uses.
	generation, cacheable := s.cache.Generation(ctx, studentCacheGeneration)
	key := cacheKey(filter, generation)
	if cacheable {
		var cached dto.StudentPage
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	start := time.Now()
	students, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveStoreOperation("list", err, time.Since(start))
	if err != nil {
		s.logger.Error("list students failed", zap.String("query", filter.Query), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if students == nil {
		students = []models.Student{}
	}

	page := &dto.StudentPage{
		Students:   students,
		Pagination: models.NewPagination(total, filter.Page, filter.Limit),
	}
	if cacheable {
		s.cache.Set(ctx, key, page)
	}
	return page, nil
}

// cacheKey folds the query so that case variants share an entry.
func cacheKey(filter models.StudentFilter, generation int64) string {
	mode := "list"
	if filter.Query != "" {
		mode = "search:" + url.QueryEscape(cases.Fold().String(filter.Query))
	}
	return fmt.Sprintf("students:g%d:%s:%d:%d", generation, mode, filter.Page, filter.Limit)
}

// invalidatePages retires every cached page after a committed mutation.
func (s *StudentService) invalidatePages(ctx context.Context) {
	s.cache.Bump(ctx, studentCacheGeneration)
	s.cache.Invalidate(ctx, studentCachePattern)
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	start := time.Now()
	student, err := s.repo.FindByID(ctx, id)
	s.metrics.ObserveStoreOperation("find", err, time.Since(start))
	if err != nil {
		return nil, s.storeError(err, "failed to load student")
	}
	return student, nil
}

// Create registers a new student after validating the payload and the
// uniqueness of its natural key.
func (s *StudentService) Create(ctx context.Context, req dto.StudentPayload) (student *models.Student, err error) {
	defer func() { s.recordMutation("create", err) }()

	req = req.Normalize()
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, req.StudentID, ""); err != nil {
		return nil, err
	}

	student = &models.Student{}
	req.Apply(student)
	start := time.Now()
	err = s.repo.Create(ctx, student)
	s.metrics.ObserveStoreOperation("insert", err, time.Since(start))
	if err != nil {
		return nil, s.storeError(err, "failed to create student")
	}

	s.invalidatePages(ctx)
	s.logger.Info("student created", zap.String("id", student.ID), zap.String("student_id", student.StudentID))
	return student, nil
}

// Update replaces the four editable fields of a student. The natural key must
// not be held by any other student; keeping the current key is allowed.
func (s *StudentService) Update(ctx context.Context, id string, req dto.StudentPayload) (student *models.Student, err error) {
	defer func() { s.recordMutation("update", err) }()

	req = req.Normalize()
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, req.StudentID, id); err != nil {
		return nil, err
	}

	student = &models.Student{ID: id}
	req.Apply(student)
	start := time.Now()
	err = s.repo.Update(ctx, student)
	s.metrics.ObserveStoreOperation("update", err, time.Since(start))
	if err != nil {
		return nil, s.storeError(err, "failed to update student")
	}

	s.invalidatePages(ctx)
	s.logger.Info("student updated", zap.String("id", id), zap.String("student_id", student.StudentID))
	return student, nil
}

// Delete removes a student permanently.
func (s *StudentService) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.recordMutation("delete", err) }()

	start := time.Now()
	err = s.repo.Delete(ctx, id)
	s.metrics.ObserveStoreOperation("delete", err, time.Since(start))
	if err != nil {
		return s.storeError(err, "failed to delete student")
	}

	s.invalidatePages(ctx)
	s.logger.Info("student deleted", zap.String("id", id))
	return nil
}

// Ping reports whether the record store is reachable.
func (s *StudentService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *StudentService) validate(req dto.StudentPayload) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, validationMessage(err))
	}
	return nil
}

func (s *StudentService) ensureUnique(ctx context.Context, studentID, excludeID string) error {
	start := time.Now()
	exists, err := s.repo.ExistsByStudentID(ctx, studentID, excludeID)
	s.metrics.ObserveStoreOperation("exists", err, time.Since(start))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student_id")
	}
	if exists {
		return duplicateStudentID(studentID)
	}
	return nil
}

// storeError maps repository sentinels onto error kinds.
func (s *StudentService) storeError(err error, message string) error {
	switch {
	case errors.Is(err, appErrors.ErrRecordNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	case errors.Is(err, appErrors.ErrDuplicateKey):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "student_id already exists")
	default:
		s.logger.Error(message, zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

func (s *StudentService) recordMutation(operation string, err error) {
	code := "OK"
	if err != nil {
		code = appErrors.FromError(err).Code
	}
	s.metrics.RecordMutation(operation, code)
}

func duplicateStudentID(studentID string) error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student_id %q already exists", studentID))
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return "invalid student payload"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}
