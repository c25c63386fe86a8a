package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

type fakeCreator struct {
	seen map[string]bool
}

func (f *fakeCreator) Create(ctx context.Context, payload dto.StudentPayload) (*models.Student, error) {
	if payload.FirstName == "" {
		return nil, errors.New("boom")
	}
	if f.seen[payload.StudentID] {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student_id already exists")
	}
	f.seen[payload.StudentID] = true
	return &models.Student{ID: payload.StudentID, StudentID: payload.StudentID}, nil
}

func TestSeedReportsOutcomes(t *testing.T) {
	students := []dto.StudentPayload{
		{StudentID: "1", FirstName: "Anne"},
		{StudentID: "1", FirstName: "Anne"},
		{StudentID: "2"},
	}
	results := seed(context.Background(), &fakeCreator{seen: map[string]bool{}}, students)
	require.Len(t, results, 3)
	assert.Equal(t, "CREATED", results[0].Status)
	assert.Equal(t, "SKIPPED", results[1].Status)
	assert.Equal(t, "ERROR", results[2].Status)

	var buf bytes.Buffer
	failed := printReport(&buf, results)
	assert.Equal(t, 1, failed)
	assert.Contains(t, buf.String(), "Created: 1, Skipped: 1, Failed: 1")
}

func TestLoadStudents(t *testing.T) {
	students, err := loadStudents("students.json")
	require.NoError(t, err)
	assert.Len(t, students, 12)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("[]"), 0o600))
	_, err = loadStudents(empty)
	assert.Error(t, err)
}
