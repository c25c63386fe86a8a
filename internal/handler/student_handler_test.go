package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

type studentServiceMock struct {
	page        *dto.StudentPage
	student     *models.Student
	err         error
	lastQuery   string
	lastPage    int
	lastLimit   int
	lastID      string
	lastPayload dto.StudentPayload
	searched    bool
}

func (m *studentServiceMock) List(ctx context.Context, page, limit int) (*dto.StudentPage, error) {
	m.lastPage, m.lastLimit = page, limit
	return m.page, m.err
}

func (m *studentServiceMock) Search(ctx context.Context, query string, page, limit int) (*dto.StudentPage, error) {
	m.searched = true
	m.lastQuery, m.lastPage, m.lastLimit = query, page, limit
	return m.page, m.err
}

func (m *studentServiceMock) Get(ctx context.Context, id string) (*models.Student, error) {
	m.lastID = id
	return m.student, m.err
}

func (m *studentServiceMock) Create(ctx context.Context, req dto.StudentPayload) (*models.Student, error) {
	m.lastPayload = req
	return m.student, m.err
}

func (m *studentServiceMock) Update(ctx context.Context, id string, req dto.StudentPayload) (*models.Student, error) {
	m.lastID, m.lastPayload = id, req
	return m.student, m.err
}

func (m *studentServiceMock) Delete(ctx context.Context, id string) error {
	m.lastID = id
	return m.err
}

type exportServiceMock struct {
	file *dto.ExportFile
	req  dto.ExportRequest
}

func (m *exportServiceMock) Export(ctx context.Context, req dto.ExportRequest) (*dto.ExportFile, error) {
	m.req = req
	return m.file, nil
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestStudentHandlerListParsesPaging(t *testing.T) {
	mockSvc := &studentServiceMock{page: &dto.StudentPage{
		Students:   []models.Student{{ID: "1", StudentID: "S-1", FirstName: "Anne"}},
		Pagination: models.NewPagination(12, 2, 5),
	}}
	h := NewStudentHandler(mockSvc, nil)

	c, w := newTestContext(http.MethodGet, "/students?page=2&limit=5", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mockSvc.lastPage)
	assert.Equal(t, 5, mockSvc.lastLimit)
	assert.JSONEq(t, `{"students":[{"_id":"1","student_id":"S-1","firstname":"Anne","lastname":"","nickname":""}],"pagination":{"total":12,"page":2,"limit":5,"totalPages":3}}`, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestStudentHandlerListInvalidPagingFallsBack(t *testing.T) {
	mockSvc := &studentServiceMock{page: &dto.StudentPage{Students: []models.Student{}}}
	h := NewStudentHandler(mockSvc, nil)

	c, w := newTestContext(http.MethodGet, "/students?page=abc&limit=", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, mockSvc.lastPage)
	assert.Equal(t, 0, mockSvc.lastLimit)
}

func TestStudentHandlerSearchUsesPathParam(t *testing.T) {
	mockSvc := &studentServiceMock{page: &dto.StudentPage{Students: []models.Student{}}}
	h := NewStudentHandler(mockSvc, nil)

	c, w := newTestContext(http.MethodGet, "/students/search/ann?page=1&limit=5", nil)
	c.Params = gin.Params{{Key: "query", Value: "ann"}}
	h.Search(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.searched)
	assert.Equal(t, "ann", mockSvc.lastQuery)
}

func TestStudentHandlerCreateInvalidBody(t *testing.T) {
	mockSvc := &studentServiceMock{}
	h := NewStudentHandler(mockSvc, nil)

	c, w := newTestContext(http.MethodPost, "/students", []byte(`{"student_id":`))
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"message":"invalid payload"`)
}

func TestStudentHandlerCreateConflict(t *testing.T) {
	mockSvc := &studentServiceMock{err: appErrors.Clone(appErrors.ErrConflict, `student_id "S-1" already exists`)}
	h := NewStudentHandler(mockSvc, nil)

	payload, _ := json.Marshal(dto.StudentPayload{StudentID: "S-1", FirstName: "Anne"})
	c, w := newTestContext(http.MethodPost, "/students", payload)
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":"CONFLICT","message":"student_id \"S-1\" already exists"}`, w.Body.String())
	assert.Equal(t, "S-1", mockSvc.lastPayload.StudentID)
}

func TestStudentHandlerCreated(t *testing.T) {
	mockSvc := &studentServiceMock{student: &models.Student{ID: "abc", StudentID: "S-1", FirstName: "Anne"}}
	h := NewStudentHandler(mockSvc, nil)

	payload, _ := json.Marshal(dto.StudentPayload{StudentID: "S-1", FirstName: "Anne"})
	c, w := newTestContext(http.MethodPost, "/students", payload)
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"_id":"abc"`)
}

func TestStudentHandlerUpdateNotFound(t *testing.T) {
	mockSvc := &studentServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")}
	h := NewStudentHandler(mockSvc, nil)

	payload, _ := json.Marshal(dto.StudentPayload{StudentID: "S-1", FirstName: "Anne"})
	c, w := newTestContext(http.MethodPut, "/students/missing", payload)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Update(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "missing", mockSvc.lastID)
}

func TestStudentHandlerDelete(t *testing.T) {
	mockSvc := &studentServiceMock{}
	h := NewStudentHandler(mockSvc, nil)

	c, w := newTestContext(http.MethodDelete, "/students/abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	h.Delete(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"student deleted"}`, w.Body.String())
}

func TestStudentHandlerExport(t *testing.T) {
	exports := &exportServiceMock{file: &dto.ExportFile{Filename: "students.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("student_id\n")}}
	h := NewStudentHandler(&studentServiceMock{}, exports)

	c, w := newTestContext(http.MethodGet, "/students/export?format=csv&q=ann", nil)
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportCSV, exports.req.Format)
	assert.Equal(t, "ann", exports.req.Query)
	assert.Equal(t, `attachment; filename="students.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "student_id\n", w.Body.String())
}
