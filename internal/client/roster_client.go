package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/student-roster-api/internal/dto"
	"github.com/noah-isme/student-roster-api/internal/models"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
	"github.com/noah-isme/student-roster-api/pkg/response"
)

const maxErrorBody = 64 << 10

// RosterClient talks to the student endpoints of the roster API.
type RosterClient struct {
	baseURL string
	http    *http.Client
}

// New constructs a client for baseURL. A nil httpClient gets one with timeout.
func New(baseURL string, httpClient *http.Client, timeout time.Duration) *RosterClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &RosterClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// List fetches one page of all students.
func (c *RosterClient) List(ctx context.Context, page, limit int) (*dto.StudentPage, error) {
	var out dto.StudentPage
	if err := c.do(ctx, http.MethodGet, "/students"+pageQuery(page, limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search fetches one page of students matching query. The trimmed query is
// path escaped; a blank query falls back to List.
func (c *RosterClient) Search(ctx context.Context, query string, page, limit int) (*dto.StudentPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.List(ctx, page, limit)
	}
	var out dto.StudentPage
	path := "/students/search/" + url.PathEscape(query) + pageQuery(page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches a single student.
func (c *RosterClient) Get(ctx context.Context, id string) (*models.Student, error) {
	var out models.Student
	if err := c.do(ctx, http.MethodGet, "/students/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create registers a new student.
func (c *RosterClient) Create(ctx context.Context, payload dto.StudentPayload) (*models.Student, error) {
	var out models.Student
	if err := c.do(ctx, http.MethodPost, "/students", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the editable fields of a student.
func (c *RosterClient) Update(ctx context.Context, id string, payload dto.StudentPayload) (*models.Student, error) {
	var out models.Student
	if err := c.do(ctx, http.MethodPut, "/students/"+url.PathEscape(id), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a student and returns the server confirmation message.
func (c *RosterClient) Delete(ctx context.Context, id string) (string, error) {
	var out response.Message
	if err := c.do(ctx, http.MethodDelete, "/students/"+url.PathEscape(id), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func pageQuery(page, limit int) string {
	values := url.Values{}
	if page > 0 {
		values.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (c *RosterClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "roster API unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "malformed roster API response")
	}
	return nil
}

// decodeError rebuilds the typed error carried by an error response. Bodies
// without a code are classified by status.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var apiErr appErrors.Error
	if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Code == "" {
		kind := kindForStatus(resp.StatusCode)
		message := strings.TrimSpace(string(raw))
		if apiErr.Message != "" {
			message = apiErr.Message
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return appErrors.Wrap(errors.New(resp.Status), kind.Code, resp.StatusCode, message)
	}
	apiErr.Status = resp.StatusCode
	return &apiErr
}

func kindForStatus(status int) *appErrors.Error {
	switch {
	case status == http.StatusNotFound:
		return appErrors.ErrNotFound
	case status >= http.StatusInternalServerError:
		return appErrors.ErrInternal
	default:
		return appErrors.ErrValidation
	}
}
