package models

import (
	"math"
	"time"
)

// Student is a roster record. ID is assigned by the store and never changes;
// StudentID is the operator supplied natural key and is unique.
type Student struct {
	ID        string    `db:"id" json:"_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	FirstName string    `db:"firstname" json:"firstname"`
	LastName  string    `db:"lastname" json:"lastname"`
	Nickname  string    `db:"nickname" json:"nickname"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

// StudentFilter carries the paging and search inputs of a read.
// An empty Query lists every student.
type StudentFilter struct {
	Query string
	Page  int
	Limit int
}

// Offset is the number of records skipped before the page starts. It
// saturates at math.MaxInt instead of wrapping.
func (f StudentFilter) Offset() int {
	if f.Page < 1 || f.Limit <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}
