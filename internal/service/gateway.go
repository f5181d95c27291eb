package service

import (
	"context"

	"phalerts.app/server/internal/model"
)

// Gateway executes remote procedures against the issue tracker. The
// concrete implementation lives in the conduit package; services
// depend on this contract so tests can substitute fakes.
//
// Gateway implementations perform no retries; retry policy, if any,
// belongs to the inbound caller.
type Gateway interface {
	// SearchOpenTasks fetches one page of open tasks matching title,
	// optionally scoped to projectPHIDs. after is the previous page's
	// continuation cursor ("" for the first page).
	SearchOpenTasks(ctx context.Context, title string, projectPHIDs []string, after string) (*model.TaskPage, error)

	// CreateTask creates a task tagged with projectPHIDs.
	CreateTask(ctx context.Context, title, description string, projectPHIDs []string) (*model.Task, error)

	// UpdateTaskDescription replaces the description of an existing
	// task, leaving title and project associations untouched.
	UpdateTaskDescription(ctx context.Context, objectPHID, description string) error

	// SearchProjects returns projects matching name exactly.
	SearchProjects(ctx context.Context, name string) ([]model.Project, error)
}
