package service

import (
	"context"
	"fmt"
	"log/slog"

	"phalerts.app/server/internal/model"
)

// ReconcileOutcome says what a reconciliation run did on the tracker.
type ReconcileOutcome string

const (
	// OutcomeCreated means no open task matched and one was created.
	OutcomeCreated ReconcileOutcome = "created"
	// OutcomeUpdated means an open task matched and its description
	// was rewritten.
	OutcomeUpdated ReconcileOutcome = "updated"
	// OutcomeNoop means an open task matched and already carried the
	// current fingerprint; no write was issued.
	OutcomeNoop ReconcileOutcome = "noop"
)

type ReconcileResult struct {
	Outcome  ReconcileOutcome
	TaskID   int
	TaskPHID string
	Title    string
}

// Reconciler maps an alert-group notification onto at most one open
// tracker task: render, resolve projects, find, then create or update.
// No state is kept across calls; concurrent notifications for distinct
// groups are independent.
type Reconciler interface {
	Reconcile(ctx context.Context, n *model.Notification, refs []model.ProjectRef, titleTemplate string) (*ReconcileResult, error)
}

type reconciler struct {
	gw       Gateway
	resolver ProjectResolver
	renderer Renderer
	finder   IssueFinder
}

var _ Reconciler = &reconciler{}

func NewReconciler(gw Gateway, resolver ProjectResolver, renderer Renderer, finder IssueFinder) Reconciler {
	return &reconciler{
		gw:       gw,
		resolver: resolver,
		renderer: renderer,
		finder:   finder,
	}
}

func (r *reconciler) Reconcile(ctx context.Context, n *model.Notification, refs []model.ProjectRef, titleTemplate string) (*ReconcileResult, error) {
	// Render first: a broken template is a client mistake and must be
	// rejected before anything goes out to the tracker.
	rendered, err := r.renderer.Render(n, titleTemplate)
	if err != nil {
		return nil, err
	}

	phids, err := r.resolver.Resolve(ctx, refs)
	if err != nil {
		return nil, err
	}

	task, err := r.finder.Find(ctx, rendered.Title, phids)
	if err != nil {
		return nil, err
	}

	if task == nil {
		slog.InfoContext(ctx, "creating task", "title", rendered.Title, "projects", phids)
		created, err := r.gw.CreateTask(ctx, rendered.Title, rendered.Description, phids)
		if err != nil {
			return nil, fmt.Errorf("creating task %q: %w", rendered.Title, err)
		}
		slog.InfoContext(ctx, "created task", "task", created.ID, "phid", created.PHID)
		return &ReconcileResult{
			Outcome:  OutcomeCreated,
			TaskID:   created.ID,
			TaskPHID: created.PHID,
			Title:    rendered.Title,
		}, nil
	}

	// The fingerprint covers the group's label set; an unchanged
	// fingerprint means a re-delivery of semantically identical
	// content, and skipping the edit keeps tracker audit logs quiet. A
	// manually edited description has no fingerprint line and always
	// gets rewritten.
	if DescriptionFingerprint(task.Description) == rendered.Fingerprint {
		slog.InfoContext(ctx, "task already up to date", "task", task.ID, "title", rendered.Title)
		return &ReconcileResult{
			Outcome:  OutcomeNoop,
			TaskID:   task.ID,
			TaskPHID: task.PHID,
			Title:    rendered.Title,
		}, nil
	}

	slog.InfoContext(ctx, "updating task description", "task", task.ID, "title", rendered.Title)
	if err := r.gw.UpdateTaskDescription(ctx, task.PHID, rendered.Description); err != nil {
		return nil, fmt.Errorf("updating task T%d: %w", task.ID, err)
	}
	return &ReconcileResult{
		Outcome:  OutcomeUpdated,
		TaskID:   task.ID,
		TaskPHID: task.PHID,
		Title:    rendered.Title,
	}, nil
}
