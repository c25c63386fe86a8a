package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
	"github.com/noah-isme/student-roster-api/internal/repository"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]models.Student
	lastFilter models.StudentFilter
	listTotal  int
	listCalls  int
	created    int
	err        error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	m.listCalls++
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, appErrors.ErrRecordNotFound
}

func (m *mockStudentRepo) ExistsByStudentID(ctx context.Context, studentID, excludeID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for id, s := range m.students {
		if s.StudentID == studentID && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	m.created++
	student.ID = fmt.Sprintf("generated-%d", m.created)
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if _, ok := m.students[student.ID]; !ok {
		return appErrors.ErrRecordNotFound
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.students[id]; !ok {
		return appErrors.ErrRecordNotFound
	}
	delete(m.students, id)
	return nil
}

func (m *mockStudentRepo) Ping(ctx context.Context) error { return m.err }

func newTestStudentService(repo studentRepository) *StudentService {
	return NewStudentService(repo, validator.New(), nil, NewMetricsService(), StudentServiceConfig{DefaultLimit: 10, MaxLimit: 100}, zap.NewNop())
}

func TestStudentServiceCreate(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newTestStudentService(repo)

	student, err := svc.Create(context.Background(), dto.StudentPayload{StudentID: " S-001 ", FirstName: "Anne", LastName: "Smith", Nickname: "An"})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, "S-001", student.StudentID)
	assert.Equal(t, "An", student.Nickname)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceCreateRequiresFirstName(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newTestStudentService(repo)

	_, err := svc.Create(context.Background(), dto.StudentPayload{StudentID: "S-001", FirstName: "   "})
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))
	assert.Contains(t, appErrors.FromError(err).Message, "firstname is required")
	assert.Empty(t, repo.students)
}

func TestStudentServiceCreateDuplicate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"a": {ID: "a", StudentID: "S-001", FirstName: "Anne"}}}
	svc := newTestStudentService(repo)

	_, err := svc.Create(context.Background(), dto.StudentPayload{StudentID: "S-001", FirstName: "Other"})
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrConflict))
	assert.Equal(t, 400, appErrors.FromError(err).Status)
	assert.Len(t, repo.students, 1)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"a": {ID: "a", StudentID: "S-001", FirstName: "Anne"},
		"b": {ID: "b", StudentID: "S-002", FirstName: "Bob"},
	}}
	svc := newTestStudentService(repo)

	t.Run("keeps own key", func(t *testing.T) {
		updated, err := svc.Update(context.Background(), "a", dto.StudentPayload{StudentID: "S-001", FirstName: "Annie", LastName: "Lee"})
		require.NoError(t, err)
		assert.Equal(t, "a", updated.ID)
		assert.Equal(t, "Annie", repo.students["a"].FirstName)
		assert.Equal(t, "Lee", repo.students["a"].LastName)
	})

	t.Run("other record key conflicts", func(t *testing.T) {
		_, err := svc.Update(context.Background(), "a", dto.StudentPayload{StudentID: "S-002", FirstName: "Annie"})
		assert.True(t, appErrors.IsKind(err, appErrors.ErrConflict))
		assert.Equal(t, "S-001", repo.students["a"].StudentID)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := svc.Update(context.Background(), "zzz", dto.StudentPayload{StudentID: "S-009", FirstName: "Nobody"})
		assert.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))
	})
}

func TestStudentServiceDelete(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"a": {ID: "a", StudentID: "S-001", FirstName: "Anne"}}}
	svc := newTestStudentService(repo)

	err := svc.Delete(context.Background(), "missing")
	assert.True(t, appErrors.IsKind(err, appErrors.ErrNotFound))
	assert.Len(t, repo.students, 1)

	require.NoError(t, svc.Delete(context.Background(), "a"))
	assert.Empty(t, repo.students)
}

func TestStudentServiceListDefaults(t *testing.T) {
	repo := &mockStudentRepo{listTotal: 0}
	svc := NewStudentService(repo, nil, nil, nil, StudentServiceConfig{DefaultLimit: 10, MaxLimit: 50}, nil)

	page, err := svc.List(context.Background(), 0, -4)
	require.NoError(t, err)
	assert.Equal(t, models.StudentFilter{Page: 1, Limit: 10}, repo.lastFilter)
	assert.NotNil(t, page.Students)
	assert.Equal(t, 0, page.Pagination.TotalPages)

	_, err = svc.List(context.Background(), 2, 500)
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastFilter.Limit)
}

func TestStudentServiceBlankSearchBehavesAsList(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newTestStudentService(repo)

	_, err := svc.Search(context.Background(), "   ", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "", repo.lastFilter.Query)

	_, err = svc.Search(context.Background(), "  ann ", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "ann", repo.lastFilter.Query)
}

func TestStudentServiceListStoreFailure(t *testing.T) {
	repo := &mockStudentRepo{err: errors.New("connection refused")}
	svc := newTestStudentService(repo)

	_, err := svc.List(context.Background(), 1, 5)
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrInternal))
	assert.Equal(t, 500, appErrors.FromError(err).Status)
}

func TestStudentServicePaginationProperties(t *testing.T) {
	repo := repository.NewStudentMemoryRepository("th")
	svc := newTestStudentService(repo)
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		_, err := svc.Create(ctx, dto.StudentPayload{StudentID: fmt.Sprintf("S-%02d", i), FirstName: fmt.Sprintf("Student %d", i)})
		require.NoError(t, err)
	}

	for limit := 1; limit <= 13; limit++ {
		for page := 1; page <= 14; page++ {
			result, err := svc.List(ctx, page, limit)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(result.Students), limit)
			assert.Equal(t, (12+limit-1)/limit, result.Pagination.TotalPages)
			assert.Equal(t, 12, result.Pagination.Total)
		}
	}

	first, err := svc.List(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, first.Students, 5)
	assert.Equal(t, "S-01", first.Students[0].StudentID)
	assert.Equal(t, "S-05", first.Students[4].StudentID)
	assert.Equal(t, 3, first.Pagination.TotalPages)
}

func TestStudentServiceRoundTrip(t *testing.T) {
	repo := repository.NewStudentMemoryRepository("th")
	svc := newTestStudentService(repo)
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		_, err := svc.Create(ctx, dto.StudentPayload{StudentID: fmt.Sprintf("S-%02d", i), FirstName: "Filler"})
		require.NoError(t, err)
	}
	created, err := svc.Create(ctx, dto.StudentPayload{StudentID: "R-1", FirstName: "Anne", LastName: "Smith", Nickname: "Annie"})
	require.NoError(t, err)

	var found *models.Student
	for page := 1; found == nil; page++ {
		result, err := svc.List(ctx, page, 3)
		require.NoError(t, err)
		require.LessOrEqual(t, page, result.Pagination.TotalPages)
		for i := range result.Students {
			if result.Students[i].ID == created.ID {
				found = &result.Students[i]
			}
		}
	}
	assert.NotEmpty(t, found.ID)
	assert.Equal(t, "R-1", found.StudentID)
	assert.Equal(t, "Anne", found.FirstName)
	assert.Equal(t, "Smith", found.LastName)
	assert.Equal(t, "Annie", found.Nickname)

	lower, err := svc.Search(ctx, "ann", 1, 10)
	require.NoError(t, err)
	upper, err := svc.Search(ctx, "ANN", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, lower, upper)
	assert.Equal(t, 1, lower.Pagination.Total)
}

type memoryCacheRepo struct {
	values      map[string]dto.StudentPage
	generations map[string]int64
	invalidated []string

	// beforeSet runs once, after the store read and before the page is stored.
	beforeSet func()
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string]dto.StudentPage{}, generations: map[string]int64{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*dto.StudentPage)) = v
	return nil
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if hook := m.beforeSet; hook != nil {
		m.beforeSet = nil
		hook()
	}
	m.values[key] = *(value.(*dto.StudentPage))
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	m.values = map[string]dto.StudentPage{}
	return nil
}

func (m *memoryCacheRepo) Generation(ctx context.Context, key string) (int64, error) {
	return m.generations[key], nil
}

func (m *memoryCacheRepo) Bump(ctx context.Context, key string) (int64, error) {
	m.generations[key]++
	return m.generations[key], nil
}

func TestStudentServiceCachesPages(t *testing.T) {
	repo := &mockStudentRepo{listTotal: 1, students: map[string]models.Student{"a": {ID: "a", StudentID: "S-001", FirstName: "Anne"}}}
	cacheRepo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	cache := NewCacheService(cacheRepo, metrics, time.Minute, zap.NewNop(), true)
	svc := NewStudentService(repo, validator.New(), cache, metrics, StudentServiceConfig{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Search(ctx, "ANN", 1, 5)
	require.NoError(t, err)
	cached, err := svc.Search(ctx, "ann", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, cached.Pagination.Total)

	_, err = svc.Create(ctx, dto.StudentPayload{StudentID: "S-002", FirstName: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, []string{studentCachePattern}, cacheRepo.invalidated)
	assert.Equal(t, int64(1), cacheRepo.generations[studentCacheGeneration])

	_, err = svc.Search(ctx, "ann", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestStudentServiceDropsPageFilledAcrossMutation(t *testing.T) {
	repo := repository.NewStudentMemoryRepository("th")
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewStudentService(repo, validator.New(), cache, NewMetricsService(), StudentServiceConfig{}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.StudentPayload{StudentID: "S-001", FirstName: "Anne"})
	require.NoError(t, err)

	cacheRepo.beforeSet = func() {
		_, err := svc.Create(ctx, dto.StudentPayload{StudentID: "S-002", FirstName: "Bob"})
		require.NoError(t, err)
	}
	stale, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Pagination.Total)

	fresh, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Pagination.Total)
	require.Len(t, fresh.Students, 2)
	assert.Equal(t, "S-002", fresh.Students[1].StudentID)
}

func TestStudentServiceBypassesCacheWithoutGeneration(t *testing.T) {
	repo := &mockStudentRepo{listTotal: 0}
	cacheRepo := &stubCacheRepo{genErr: errors.New("redis down")}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewStudentService(repo, validator.New(), cache, NewMetricsService(), StudentServiceConfig{}, zap.NewNop())

	_, err := svc.List(context.Background(), 1, 5)
	require.NoError(t, err)
	_, err = svc.List(context.Background(), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
	assert.False(t, cacheRepo.getCalled)
	assert.Zero(t, cacheRepo.setTTL)
}

func TestStudentServiceHugePageIsEmpty(t *testing.T) {
	repo := repository.NewStudentMemoryRepository("th")
	svc := newTestStudentService(repo)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		_, err := svc.Create(ctx, dto.StudentPayload{StudentID: fmt.Sprintf("S-%02d", i), FirstName: "Anne"})
		require.NoError(t, err)
	}

	for _, page := range []int{math.MaxInt64/5 + 2, math.MaxInt} {
		result, err := svc.List(ctx, page, 5)
		require.NoError(t, err)
		assert.NotNil(t, result.Students)
		assert.Empty(t, result.Students)
		assert.Equal(t, 3, result.Pagination.Total)
		assert.Equal(t, 1, result.Pagination.TotalPages)
		assert.Equal(t, math.MaxInt/5, result.Pagination.Page)
	}

	searched, err := svc.Search(ctx, "anne", math.MaxInt, 1)
	require.NoError(t, err)
	assert.Empty(t, searched.Students)
	assert.Equal(t, 3, searched.Pagination.Total)
}

func TestCacheKeyFoldsCase(t *testing.T) {
	assert.Equal(t, "students:g0:list:1:5", cacheKey(models.StudentFilter{Page: 1, Limit: 5}, 0))
	assert.Equal(t,
		cacheKey(models.StudentFilter{Query: "ANNE", Page: 2, Limit: 5}, 3),
		cacheKey(models.StudentFilter{Query: "anne", Page: 2, Limit: 5}, 3))
	assert.NotEqual(t,
		cacheKey(models.StudentFilter{Query: "anne", Page: 1, Limit: 5}, 3),
		cacheKey(models.StudentFilter{Query: "anne", Page: 2, Limit: 5}, 3))
	assert.NotEqual(t,
		cacheKey(models.StudentFilter{Page: 1, Limit: 5}, 1),
		cacheKey(models.StudentFilter{Page: 1, Limit: 5}, 2))
}
