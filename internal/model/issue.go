package model

// TaskStatus is the coarse open/closed state of a Maniphest task. The
// tracker has richer statuses; this service only distinguishes open
// from everything else.
type TaskStatus string

const (
	TaskStatusOpen   TaskStatus = "open"
	TaskStatusClosed TaskStatus = "closed"
)

// Task is a Maniphest task as returned by maniphest.search.
type Task struct {
	ID           int
	PHID         string
	Title        string
	Description  string
	Status       TaskStatus
	ProjectPHIDs []string
}

// HasProjects reports whether the task is tagged with every PHID in
// phids.
func (t *Task) HasProjects(phids []string) bool {
	tagged := make(map[string]bool, len(t.ProjectPHIDs))
	for _, p := range t.ProjectPHIDs {
		tagged[p] = true
	}
	for _, p := range phids {
		if !tagged[p] {
			return false
		}
	}
	return true
}

// TaskPage is one page of maniphest.search results. After is the
// opaque continuation cursor; empty means the last page.
type TaskPage struct {
	Tasks []Task
	After string
}

// Project is a Phabricator project as returned by project.search.
type Project struct {
	PHID string
	Name string
}

// ProjectRef identifies a project as named in an inbound request:
// either a human-readable name still to be resolved, or an
// already-canonical PHID. Exactly one field is set.
type ProjectRef struct {
	Name string
	PHID string
}

// RenderedIssue is the title and description derived from a
// notification, plus the alert-group fingerprint embedded in the
// description.
type RenderedIssue struct {
	Title       string
	Description string
	Fingerprint string
}
