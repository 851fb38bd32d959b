// Package canvas implements the Gradebook port against the Canvas LMS REST API.
package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/gradedesk/gradedesk/internal/domain/model"
	"github.com/gradedesk/gradedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Gradebook = (*Client)(nil)

const (
	perPage = 100

	// defaultRetryAfter is used when a 429 response carries no Retry-After.
	defaultRetryAfter = 60 * time.Second
)

// Client implements the driven.Gradebook port against the Canvas REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string // Instance root, e.g. "https://school.instructure.com".
	token      string
}

// NewClient creates a Canvas API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. net/http with bearer token auth and the given overall timeout
func NewClient(canvasURL, token string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   timeout,
		},
		baseURL: strings.TrimRight(canvasURL, "/"),
		token:   token,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(u.String(), "/"),
		token:      token,
	}, nil
}

// apiURL builds an /api/v1 URL for the given endpoint and query.
func (c *Client) apiURL(endpoint string, query url.Values) string {
	u := c.baseURL + "/api/v1/" + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do executes one authenticated request. A 429 response is retried exactly
// once after honoring Retry-After; a second 429 surfaces as ErrRateLimited.
// The caller owns the response body.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		return resp, nil
	}

	wait := retryAfter(resp)
	drainBody(resp)
	slog.Warn("canvas rate limited", "url", rawURL, "retry_after", wait)

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	resp, err = c.send(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		drainBody(resp)
		return nil, fmt.Errorf("canvas api %s %s: %w", method, rawURL, driven.ErrRateLimited)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("building request %s %s: %w", method, rawURL, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("canvas api %s %s: %w", method, rawURL, err)
	}
	slog.Debug("canvas api call", "method", method, "url", rawURL, "status", resp.StatusCode)
	return resp, nil
}

// getJSON GETs rawURL and decodes the 200 response into out, returning the
// response headers for pagination.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) (http.Header, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return resp.Header, nil
}

// ListCourses retrieves the courses visible to the authenticated user.
// It handles pagination automatically and maps Canvas types to domain model types.
func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	query := url.Values{
		"per_page":  {strconv.Itoa(perPage)},
		"include[]": {"term"},
	}

	var all []model.Course
	next := c.apiURL("courses", query)
	for next != "" {
		var page []canvasCourse
		header, err := c.getJSON(ctx, next, &page)
		if err != nil {
			return nil, fmt.Errorf("listing courses: %w", err)
		}
		for _, course := range page {
			all = append(all, mapCourse(course))
		}
		next = nextPageURL(header)
	}

	if all == nil {
		all = []model.Course{}
	}
	return all, nil
}

// ListAssignments retrieves all assignments in a course.
// It handles pagination automatically and maps Canvas types to domain model types.
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]model.Assignment, error) {
	query := url.Values{"per_page": {strconv.Itoa(perPage)}}

	var all []model.Assignment
	next := c.apiURL(fmt.Sprintf("courses/%d/assignments", courseID), query)
	for next != "" {
		var page []canvasAssignment
		header, err := c.getJSON(ctx, next, &page)
		if err != nil {
			return nil, fmt.Errorf("listing assignments for course %d: %w", courseID, err)
		}
		for _, a := range page {
			all = append(all, mapAssignment(a, courseID))
		}
		next = nextPageURL(header)
	}

	if all == nil {
		all = []model.Assignment{}
	}
	return all, nil
}

// ListSubmissions retrieves every submission for an assignment, including
// the submitting user and submission history.
// It handles pagination automatically and maps Canvas types to domain model types.
func (c *Client) ListSubmissions(ctx context.Context, courseID, assignmentID int64) ([]model.GradebookSubmission, error) {
	query := url.Values{
		"per_page":  {strconv.Itoa(perPage)},
		"include[]": {"user", "submission_history"},
	}

	var all []model.GradebookSubmission
	next := c.apiURL(fmt.Sprintf("courses/%d/assignments/%d/submissions", courseID, assignmentID), query)
	for next != "" {
		var page []canvasSubmission
		header, err := c.getJSON(ctx, next, &page)
		if err != nil {
			return nil, fmt.Errorf("listing submissions for assignment %d: %w", assignmentID, err)
		}
		for _, s := range page {
			all = append(all, mapSubmission(s))
		}
		next = nextPageURL(header)
	}

	if all == nil {
		all = []model.GradebookSubmission{}
	}
	return all, nil
}

// DownloadAttachment streams a submission attachment to destPath. The URL is
// the absolute download link from the submission payload.
func (c *Client) DownloadAttachment(ctx context.Context, fileURL, destPath string) error {
	resp, err := c.do(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", destPath, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", destPath, err)
	}
	return nil
}

// PostGrade writes a grade and optional feedback comment back to a student's
// submission. Rejections (4xx) surface as ErrUploadRejected so the caller
// can skip the row and keep going.
func (c *Client) PostGrade(ctx context.Context, courseID, assignmentID, userID int64, grade, comment string) error {
	payload := gradeUpdate{}
	payload.Submission.PostedGrade = grade
	if comment != "" {
		payload.Comment = &gradeComment{TextComment: comment}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding grade update: %w", err)
	}

	rawURL := c.apiURL(fmt.Sprintf("courses/%d/assignments/%d/submissions/%d", courseID, assignmentID, userID), nil)
	resp, err := c.do(ctx, http.MethodPut, rawURL, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("posting grade for user %d: status %d: %s: %w",
			userID, resp.StatusCode, bodySnippet(resp), driven.ErrUploadRejected)
	default:
		return fmt.Errorf("posting grade for user %d: %w", userID, statusError(resp))
	}
}

// --- wire types ---

type canvasCourse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
	Term       *struct {
		Name string `json:"name"`
	} `json:"term"`
}

type canvasAssignment struct {
	ID                  int64             `json:"id"`
	Name                string            `json:"name"`
	PointsPossible      float64           `json:"points_possible"`
	DueAt               *time.Time        `json:"due_at"`
	Published           bool              `json:"published"`
	UseRubricForGrading bool              `json:"use_rubric_for_grading"`
	Rubric              []json.RawMessage `json:"rubric"`
}

type canvasSubmission struct {
	UserID        int64              `json:"user_id"`
	Body          string             `json:"body"`
	SubmittedAt   *time.Time         `json:"submitted_at"`
	WorkflowState string             `json:"workflow_state"`
	Attachments   []canvasAttachment `json:"attachments"`
	User          *canvasUser        `json:"user"`
}

type canvasUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type canvasAttachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	// Canvas serializes the MIME type under a hyphenated key.
	ContentType string `json:"content-type"`
	Size        int64  `json:"size"`
}

type gradeUpdate struct {
	Submission struct {
		PostedGrade string `json:"posted_grade"`
	} `json:"submission"`
	Comment *gradeComment `json:"comment,omitempty"`
}

type gradeComment struct {
	TextComment string `json:"text_comment"`
}

// --- mapping ---

func mapCourse(c canvasCourse) model.Course {
	course := model.Course{
		ID:         c.ID,
		Name:       c.Name,
		CourseCode: c.CourseCode,
	}
	if c.Term != nil {
		course.Term = c.Term.Name
	}
	return course
}

func mapAssignment(a canvasAssignment, courseID int64) model.Assignment {
	assignment := model.Assignment{
		ID:             a.ID,
		CourseID:       courseID,
		Name:           a.Name,
		PointsPossible: a.PointsPossible,
		Published:      a.Published,
		HasRubric:      a.UseRubricForGrading || len(a.Rubric) > 0,
	}
	if a.DueAt != nil {
		assignment.DueAt = *a.DueAt
	}
	return assignment
}

func mapSubmission(s canvasSubmission) model.GradebookSubmission {
	sub := model.GradebookSubmission{
		UserID: s.UserID,
		Body:   s.Body,
		State:  s.WorkflowState,
	}
	if s.SubmittedAt != nil {
		sub.SubmittedAt = *s.SubmittedAt
	}
	if s.User != nil && s.User.Name != "" {
		sub.UserName = s.User.Name
	} else {
		sub.UserName = fmt.Sprintf("user_%d", s.UserID)
	}
	for _, a := range s.Attachments {
		sub.Attachments = append(sub.Attachments, model.Attachment{
			Filename:    a.Filename,
			URL:         a.URL,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}
	return sub
}

// --- helpers ---

// nextPageURL extracts the rel="next" target from an RFC 5988 Link header.
// Canvas paginates every list endpoint this way.
func nextPageURL(header http.Header) string {
	for _, link := range header.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			fields := strings.Split(part, ";")
			if len(fields) < 2 {
				continue
			}
			target := strings.Trim(strings.TrimSpace(fields[0]), "<>")
			for _, param := range fields[1:] {
				if strings.TrimSpace(param) == `rel="next"` {
					return target
				}
			}
		}
	}
	return ""
}

// retryAfter reads the Retry-After header as whole seconds.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

// statusError reports a non-2xx response with a snippet of its body.
func statusError(resp *http.Response) error {
	return fmt.Errorf("canvas api %s %s: status %d: %s",
		resp.Request.Method, resp.Request.URL, resp.StatusCode, bodySnippet(resp))
}

// bodySnippet reads at most 512 bytes of the response body for error messages.
func bodySnippet(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return strings.TrimSpace(string(data))
}

func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
