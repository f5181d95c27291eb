// Package conduit is a minimal client for Phabricator's Conduit API,
// covering the four methods this service needs: maniphest.search,
// maniphest.edit (create and update) and project.search.
//
// The client performs no retries. Failures are reported as typed
// errors so callers can tell a rejected credential (fatal) from a
// backoff request (retriable) from a malformed response (fatal for the
// request).
package conduit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"phalerts.app/server/internal/metrics"
	"phalerts.app/server/internal/model"
)

const defaultRetryAfter = 15 * time.Second

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SearchOpenTasks fetches one page of open tasks matching title,
// optionally constrained to projectPHIDs. Pass the previous page's
// cursor in after, or "" for the first page.
//
// The query constraint is a full-text search; callers must still
// filter for exact title equality.
func (c *Client) SearchOpenTasks(ctx context.Context, title string, projectPHIDs []string, after string) (*model.TaskPage, error) {
	params := taskSearchParams{
		Constraints: taskConstraints{
			Query:    fmt.Sprintf("title:%q", title),
			Statuses: []string{"open"},
			Projects: projectPHIDs,
		},
		Attachments: attachmentSpec{Projects: true},
		// Expands to "title, id", keeping ordering stable across pages.
		Order: "title",
		After: after,
	}

	var res taskSearchResult
	if err := c.call(ctx, "maniphest.search", params, &res); err != nil {
		return nil, err
	}

	page := &model.TaskPage{After: res.Cursor.After}
	for _, d := range res.Data {
		page.Tasks = append(page.Tasks, model.Task{
			ID:           d.ID,
			PHID:         d.PHID,
			Title:        d.Fields.Name,
			Description:  d.Fields.Description.Raw,
			Status:       taskStatus(d.Fields.Status.Value),
			ProjectPHIDs: d.Attachments.Projects.ProjectPHIDs,
		})
	}
	return page, nil
}

// CreateTask creates a Maniphest task via maniphest.edit without an
// objectIdentifier.
func (c *Client) CreateTask(ctx context.Context, title, description string, projectPHIDs []string) (*model.Task, error) {
	txns := []transaction{
		{Type: "title", Value: title},
		{Type: "description", Value: description},
	}
	if len(projectPHIDs) > 0 {
		txns = append(txns, transaction{Type: "projects.add", Value: projectPHIDs})
	}

	var res editResult
	if err := c.call(ctx, "maniphest.edit", editParams{Transactions: txns}, &res); err != nil {
		return nil, err
	}
	if res.Object.PHID == "" {
		return nil, &ProtocolError{Method: "maniphest.edit", Reason: "create returned no object"}
	}

	return &model.Task{
		ID:           res.Object.ID,
		PHID:         res.Object.PHID,
		Title:        title,
		Description:  description,
		Status:       model.TaskStatusOpen,
		ProjectPHIDs: projectPHIDs,
	}, nil
}

// UpdateTaskDescription replaces the description of an existing task.
// Title and project associations are left untouched.
func (c *Client) UpdateTaskDescription(ctx context.Context, objectPHID, description string) error {
	txns := []transaction{{Type: "description", Value: description}}

	var res editResult
	if err := c.call(ctx, "maniphest.edit", editParams{Transactions: txns, ObjectIdentifier: objectPHID}, &res); err != nil {
		return err
	}
	if len(res.Transactions) < len(txns) {
		return &ProtocolError{
			Method: "maniphest.edit",
			Reason: fmt.Sprintf("only %d of %d transactions applied to %s", len(res.Transactions), len(txns), objectPHID),
		}
	}
	return nil
}

// SearchProjects returns the projects matching name exactly. Project
// names are unique enough that a continuation cursor here means the
// response cannot be trusted, so it is rejected outright.
func (c *Client) SearchProjects(ctx context.Context, name string) ([]model.Project, error) {
	var res projectSearchResult
	if err := c.call(ctx, "project.search", projectSearchParams{Constraints: projectConstraints{Name: name}}, &res); err != nil {
		return nil, err
	}
	if res.Cursor.After != "" {
		return nil, &ProtocolError{
			Method: "project.search",
			Reason: fmt.Sprintf("unexpected continuation cursor searching for project %q", name),
		}
	}

	projects := make([]model.Project, 0, len(res.Data))
	for _, d := range res.Data {
		projects = append(projects, model.Project{PHID: d.PHID, Name: d.Fields.Name})
	}
	return projects, nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return &ProtocolError{Method: method, Reason: fmt.Sprintf("encoding params: %v", err)}
	}

	form := url.Values{}
	form.Set("params", string(encoded))
	form.Set("api.token", c.token)
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("building conduit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveConduitCall(method, start)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("calling conduit %s: %w", method, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Code: resp.Status}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(resp)}
	case resp.StatusCode != http.StatusOK:
		return &ProtocolError{Method: method, Reason: fmt.Sprintf("unexpected HTTP status %s", resp.Status)}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &ProtocolError{Method: method, Reason: fmt.Sprintf("decoding response: %v", err)}
	}
	if env.ErrorCode != "" {
		if isAuthCode(env.ErrorCode) {
			return &AuthError{Code: env.ErrorCode, Info: env.ErrorInfo}
		}
		return &ProtocolError{Method: method, Code: env.ErrorCode, Reason: env.ErrorInfo}
	}
	if out != nil {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return &ProtocolError{Method: method, Reason: fmt.Sprintf("decoding result: %v", err)}
		}
	}
	return nil
}

func isAuthCode(code string) bool {
	switch code {
	case "ERR-INVALID-AUTH", "ERR-INVALID-TOKEN", "ERR-INVALID-USER", "ERR-INVALID-SESSION":
		return true
	}
	return false
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

func taskStatus(v string) model.TaskStatus {
	if v == string(model.TaskStatusOpen) {
		return model.TaskStatusOpen
	}
	return model.TaskStatusClosed
}
