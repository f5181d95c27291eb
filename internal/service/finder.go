package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"phalerts.app/server/internal/model"
)

// ErrPaginationLimit means the remote search was cut off before the
// finder could confirm how many open tasks match. Treating this as
// "not found" would risk creating duplicates, so it is surfaced
// instead.
var ErrPaginationLimit = errors.New("pagination limit exceeded before confirming a unique match")

// DefaultSearchResultCap mirrors Conduit's own per-page ceiling.
const DefaultSearchResultCap = 100

// IssueFinder locates the open task, if any, that an alert group
// already maps to.
type IssueFinder interface {
	// Find returns the single open task whose title equals title and
	// whose projects include every PHID in projectPHIDs, or nil when
	// none exists. Multiple matches are resolved to the lowest task ID.
	Find(ctx context.Context, title string, projectPHIDs []string) (*model.Task, error)
}

type issueFinder struct {
	gw        Gateway
	resultCap int
}

var _ IssueFinder = &issueFinder{}

func NewIssueFinder(gw Gateway, resultCap int) IssueFinder {
	if resultCap <= 0 {
		resultCap = DefaultSearchResultCap
	}
	return &issueFinder{
		gw:        gw,
		resultCap: resultCap,
	}
}

func (f *issueFinder) Find(ctx context.Context, title string, projectPHIDs []string) (*model.Task, error) {
	var matches []model.Task
	after := ""

	for {
		page, err := f.gw.SearchOpenTasks(ctx, title, projectPHIDs, after)
		if err != nil {
			return nil, fmt.Errorf("searching for task %q: %w", title, err)
		}

		for _, t := range page.Tasks {
			// The query constraint is full text; only exact title
			// matches in scope count.
			if t.Title != title || t.Status != model.TaskStatusOpen {
				continue
			}
			if !t.HasProjects(projectPHIDs) {
				continue
			}
			matches = append(matches, t)
			if len(matches) > f.resultCap {
				return nil, fmt.Errorf("more than %d open tasks titled %q: %w", f.resultCap, title, ErrPaginationLimit)
			}
		}

		if page.After == "" {
			break
		}
		if len(matches) >= f.resultCap {
			// Cursor still present with the cap already reached:
			// uniqueness can no longer be confirmed.
			return nil, fmt.Errorf("search for %q truncated at %d results: %w", title, f.resultCap, ErrPaginationLimit)
		}
		after = page.After
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return &matches[0], nil
	default:
		// Should not happen for titles this service generates, but is
		// possible under races or manual tracker edits. Pick the
		// lowest ID deterministically and flag the rest.
		sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
		slog.WarnContext(ctx, "multiple open tasks match title, picking lowest id",
			"title", title, "count", len(matches), "picked", matches[0].ID)
		return &matches[0], nil
	}
}
