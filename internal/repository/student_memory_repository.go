package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/search"

	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

// StudentMemoryRepository keeps students in process memory in insertion
// order. Search uses locale collation with case folding so it matches the
// behaviour of the document store.
type StudentMemoryRepository struct {
	mu       sync.RWMutex
	students []models.Student
	lang     language.Tag
	now      func() time.Time
}

// NewStudentMemoryRepository constructs an empty in-memory store. An
// unparseable locale falls back to language.Und.
func NewStudentMemoryRepository(locale string) *StudentMemoryRepository {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	return &StudentMemoryRepository{lang: tag, now: time.Now}
}

// List returns one page of matching students and the total match count.
func (r *StudentMemoryRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matcher *search.Matcher
	if filter.Query != "" {
		matcher = search.New(r.lang, search.IgnoreCase)
	}

	offset := filter.Offset()
	page := make([]models.Student, 0, filter.Limit)
	total := 0
	for _, s := range r.students {
		if matcher != nil && !matchesStudent(matcher, s, filter.Query) {
			continue
		}
		if total >= offset && len(page) < filter.Limit {
			page = append(page, s)
		}
		total++
	}
	return page, total, nil
}

func matchesStudent(m *search.Matcher, s models.Student, query string) bool {
	for _, field := range []string{s.StudentID, s.FirstName, s.LastName, s.Nickname} {
		if start, _ := m.IndexString(field, query); start >= 0 {
			return true
		}
	}
	return false
}

// FindByID fetches a student by identifier.
func (r *StudentMemoryRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, appErrors.ErrRecordNotFound
	}
	student := r.students[i]
	return &student, nil
}

// ExistsByStudentID reports whether another record holds the natural key.
func (r *StudentMemoryRepository) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holder(studentID, excludeID) >= 0, nil
}

// Create stores a new student and assigns its identifier. The natural key is
// checked again under the write lock.
func (r *StudentMemoryRepository) Create(ctx context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.holder(student.StudentID, "") >= 0 {
		return appErrors.ErrDuplicateKey
	}
	now := r.now().UTC()
	student.ID = uuid.NewString()
	student.CreatedAt = now
	student.UpdatedAt = now
	r.students = append(r.students, *student)
	return nil
}

// Update replaces the mutable fields of an existing student.
func (r *StudentMemoryRepository) Update(ctx context.Context, student *models.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(student.ID)
	if i < 0 {
		return appErrors.ErrRecordNotFound
	}
	if r.holder(student.StudentID, student.ID) >= 0 {
		return appErrors.ErrDuplicateKey
	}
	current := &r.students[i]
	current.StudentID = student.StudentID
	current.FirstName = student.FirstName
	current.LastName = student.LastName
	current.Nickname = student.Nickname
	current.UpdatedAt = r.now().UTC()
	*student = *current
	return nil
}

// Delete removes a student permanently.
func (r *StudentMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return appErrors.ErrRecordNotFound
	}
	r.students = append(r.students[:i], r.students[i+1:]...)
	return nil
}

// Ping always succeeds.
func (r *StudentMemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *StudentMemoryRepository) indexOf(id string) int {
	for i := range r.students {
		if r.students[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *StudentMemoryRepository) holder(studentID, excludeID string) int {
	for i := range r.students {
		if r.students[i].StudentID == studentID && r.students[i].ID != excludeID {
			return i
		}
	}
	return -1
}
