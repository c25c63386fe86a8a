package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

const (
	studentColumns  = "id, student_id, firstname, lastname, nickname, created_at, updated_at"
	uniqueViolation = "23505"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// StudentRepository manages persistence for student records in PostgreSQL.
// Case-insensitive matching follows the database LC_CTYPE through ILIKE.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns one page of students in insertion order and the total number
// of students matching the filter.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	where, args := buildStudentWhere(filter.Query)

	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY seq ASC LIMIT %d OFFSET %d",
		studentColumns, where, filter.Limit, filter.Offset())

	students := make([]models.Student, 0, filter.Limit)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

func buildStudentWhere(search string) (string, []interface{}) {
	if search == "" {
		return "", nil
	}
	pattern := "%" + likeEscaper.Replace(search) + "%"
	return " WHERE (student_id ILIKE $1 OR firstname ILIKE $1 OR lastname ILIKE $1 OR nickname ILIKE $1)",
		[]interface{}{pattern}
}

// FindByID fetches a student by its store identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.ErrRecordNotFound
	}
	var student models.Student
	err := r.db.GetContext(ctx, &student, "SELECT "+studentColumns+" FROM students WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRecordNotFound
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ExistsByStudentID checks if a student holds the natural key, optionally
// ignoring the record with excludeID.
func (r *StudentRepository) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE student_id = $1"
	args := []interface{}{studentID}
	if excludeID != "" {
		if _, err := uuid.Parse(excludeID); err == nil {
			query += " AND id <> $2"
			args = append(args, excludeID)
		}
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student_id: %w", err)
	}
	return true, nil
}

// Create inserts a new student and assigns its identifier.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	student.ID = uuid.NewString()
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, student_id, firstname, lastname, nickname, created_at, updated_at)
        VALUES (:id, :student_id, :firstname, :lastname, :nickname, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", translatePQ(err))
	}
	return nil
}

// Update replaces the mutable fields of an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	if _, err := uuid.Parse(student.ID); err != nil {
		return appErrors.ErrRecordNotFound
	}
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_id = :student_id, firstname = :firstname, lastname = :lastname, nickname = :nickname, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", translatePQ(err))
	}
	return requireAffected(res)
}

// Delete removes a student permanently.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.ErrRecordNotFound
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return requireAffected(res)
}

// Ping verifies the database connection.
func (r *StudentRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return appErrors.ErrRecordNotFound
	}
	return nil
}

func translatePQ(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return appErrors.ErrDuplicateKey
	}
	return err
}
