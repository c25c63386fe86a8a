// Package coordinator drives the roster view: it owns the search text, the
// page cursor and the busy flag, and decides whether a read is a list or a
// search.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

const (
	DefaultLimit    = 5
	DefaultDebounce = 500 * time.Millisecond
)

var (
	// ErrBusy is returned for actions attempted while a request is in flight.
	ErrBusy = errors.New("coordinator busy")
	// ErrInvalidLimit is returned by SetLimit for non-positive sizes.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// Backend is the roster API as seen by the coordinator.
type Backend interface {
	List(ctx context.Context, page, limit int) (*dto.StudentPage, error)
	Search(ctx context.Context, query string, page, limit int) (*dto.StudentPage, error)
	Create(ctx context.Context, payload dto.StudentPayload) (*models.Student, error)
	Update(ctx context.Context, id string, payload dto.StudentPayload) (*models.Student, error)
	Delete(ctx context.Context, id string) (string, error)
}

// Notifier surfaces mutation outcomes to the operator.
type Notifier interface {
	Success(message string)
	Failure(err *appErrors.Error)
}

// Confirmer gates destructive actions.
type Confirmer interface {
	Confirm(prompt string) bool
}

// Options configures a Coordinator. Zero values select the defaults.
type Options struct {
	Limit     int
	Debounce  time.Duration
	Scheduler Scheduler
	Notifier  Notifier
	Confirmer Confirmer
	Logger    *zap.Logger
}

// State is a point-in-time copy of what the view renders.
type State struct {
	Input      string
	Query      string
	Page       int
	Limit      int
	Busy       bool
	Students   []models.Student
	Pagination models.Pagination
	Err        error
}

// Searching reports whether the current read is a search.
func (s State) Searching() bool {
	return strings.TrimSpace(s.Query) != ""
}

// Coordinator is safe for concurrent use. Reads run on the calling goroutine
// or, for debounced input, on the scheduler's goroutine.
type Coordinator struct {
	backend   Backend
	scheduler Scheduler
	notifier  Notifier
	confirmer Confirmer
	debounce  time.Duration
	logger    *zap.Logger
	seq       sequence

	mu         sync.Mutex
	input      string
	query      string
	page       int
	limit      int
	inflight   int
	pending    Timer
	students   []models.Student
	pagination models.Pagination
	err        error
}

// New constructs a Coordinator positioned on page 1 of the unfiltered list.
// No read is issued until Refresh or another trigger.
func New(backend Backend, opts Options) *Coordinator {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Coordinator{
		backend:   backend,
		scheduler: opts.Scheduler,
		notifier:  opts.Notifier,
		confirmer: opts.Confirmer,
		debounce:  opts.Debounce,
		logger:    opts.Logger,
		page:      1,
		limit:     opts.Limit,
	}
}

// Snapshot returns a copy of the observable state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	students := make([]models.Student, len(c.students))
	copy(students, c.students)
	return State{
		Input:      c.input,
		Query:      c.query,
		Page:       c.page,
		Limit:      c.limit,
		Busy:       c.inflight > 0,
		Students:   students,
		Pagination: c.pagination,
		Err:        c.err,
	}
}

// SetInput records raw search text. The pending debounce callback, if any, is
// cancelled and a new one scheduled; when it fires with text different from
// the current query, the page resets to 1 and one read is issued.
func (c *Coordinator) SetInput(ctx context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.input = text
	if c.pending != nil {
		c.pending.Stop()
	}
	c.pending = c.scheduler.AfterFunc(c.debounce, func() {
		c.settleInput(ctx, text)
	})
}

func (c *Coordinator) settleInput(ctx context.Context, text string) {
	c.mu.Lock()
	if c.input != text {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	if c.query == text {
		c.mu.Unlock()
		return
	}
	c.query = text
	c.page = 1
	c.mu.Unlock()

	_ = c.fetch(ctx)
}

// Flush settles pending input immediately instead of waiting for the quiet
// period. It is a no-op when nothing is pending.
func (c *Coordinator) Flush(ctx context.Context) {
	c.mu.Lock()
	pending := c.pending
	text := c.input
	c.pending = nil
	c.mu.Unlock()

	if pending != nil && pending.Stop() {
		c.settleInput(ctx, text)
	}
}

// GoToPage moves to page n and reads it. It returns false without issuing a
// request when n is outside [1, totalPages] or the coordinator is busy.
func (c *Coordinator) GoToPage(ctx context.Context, n int) bool {
	c.mu.Lock()
	if c.inflight > 0 || !c.pagination.Contains(n) {
		totalPages := c.pagination.TotalPages
		c.mu.Unlock()
		c.logger.Debug("page change rejected", zap.Int("page", n), zap.Int("total_pages", totalPages))
		return false
	}
	c.page = n
	c.mu.Unlock()

	_ = c.fetch(ctx)
	return true
}

// SetLimit changes the page size, returns to page 1 and reads it.
func (c *Coordinator) SetLimit(ctx context.Context, n int) error {
	if n <= 0 {
		return ErrInvalidLimit
	}
	c.mu.Lock()
	if c.inflight > 0 {
		c.mu.Unlock()
		return ErrBusy
	}
	c.limit = n
	c.page = 1
	c.mu.Unlock()

	return c.fetch(ctx)
}

// Refresh re-issues the current read.
func (c *Coordinator) Refresh(ctx context.Context) error {
	return c.fetch(ctx)
}

// fetch issues one read for the current query, page and limit. A response
// is applied only if no newer read was issued meanwhile. When the accepted
// page lies beyond the result set the read is repeated on the last page.
func (c *Coordinator) fetch(ctx context.Context) error {
	for {
		c.mu.Lock()
		seq := c.seq.next()
		query := strings.TrimSpace(c.query)
		page, limit := c.page, c.limit
		c.inflight++
		c.mu.Unlock()

		var (
			result *dto.StudentPage
			err    error
		)
		if query != "" {
			result, err = c.backend.Search(ctx, query, page, limit)
		} else {
			result, err = c.backend.List(ctx, page, limit)
		}

		c.mu.Lock()
		c.inflight--
		if seq != c.seq.current() {
			c.mu.Unlock()
			c.logger.Debug("stale read discarded", zap.Int64("seq", seq))
			return nil
		}
		if err != nil {
			c.err = err
			c.mu.Unlock()
			c.logger.Warn("read failed", zap.String("query", query), zap.Int("page", page), zap.Error(err))
			return err
		}

		c.err = nil
		c.students = result.Students
		c.pagination = result.Pagination
		retry := !result.Pagination.Settled() && c.page == page
		if retry {
			c.page = result.Pagination.TotalPages
		}
		c.mu.Unlock()

		if !retry {
			return nil
		}
	}
}

// Create registers a student and refreshes the current page.
func (c *Coordinator) Create(ctx context.Context, payload dto.StudentPayload) (*models.Student, error) {
	var student *models.Student
	err := c.mutate(ctx, func() (string, error) {
		var err error
		student, err = c.backend.Create(ctx, payload)
		return "student created", err
	})
	return student, err
}

// Update replaces a student's fields and refreshes the current page.
func (c *Coordinator) Update(ctx context.Context, id string, payload dto.StudentPayload) (*models.Student, error) {
	var student *models.Student
	err := c.mutate(ctx, func() (string, error) {
		var err error
		student, err = c.backend.Update(ctx, id, payload)
		return "student updated", err
	})
	return student, err
}

// Delete asks for confirmation, then removes the student and refreshes the
// current page. It returns false when the operator declined.
func (c *Coordinator) Delete(ctx context.Context, id string) (bool, error) {
	if c.confirmer != nil && !c.confirmer.Confirm(fmt.Sprintf("Delete student %s?", id)) {
		return false, nil
	}
	err := c.mutate(ctx, func() (string, error) {
		return c.backend.Delete(ctx, id)
	})
	return err == nil, err
}

// mutate runs call unless busy. Success is announced before the refresh;
// failure leaves the view untouched.
func (c *Coordinator) mutate(ctx context.Context, call func() (string, error)) error {
	c.mu.Lock()
	if c.inflight > 0 {
		c.mu.Unlock()
		return ErrBusy
	}
	c.inflight++
	c.mu.Unlock()

	message, err := call()

	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()

	if err != nil {
		appErr := appErrors.FromError(err)
		c.logger.Warn("mutation failed", zap.String("code", appErr.Code), zap.Error(err))
		if c.notifier != nil {
			c.notifier.Failure(appErr)
		}
		return err
	}

	if c.notifier != nil {
		c.notifier.Success(message)
	}
	_ = c.fetch(ctx)
	return nil
}
