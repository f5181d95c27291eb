package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"phalerts.app/server/internal/model"
)

// ErrProjectNotFound covers both an unknown project name and a name
// matching more than one project: an ambiguous name is an error, not a
// best-effort pick.
var ErrProjectNotFound = errors.New("project not found")

// ProjectCache maps project names to PHIDs across requests. Safe for
// concurrent use. The first write for a name wins, so concurrent fills
// for the same name never surface inconsistent values to different
// callers (at the cost of at most one redundant remote lookup).
//
// Entries expire after ttl; a ttl of zero means entries live for the
// process lifetime (restart to refresh).
type ProjectCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]projectCacheEntry
}

type projectCacheEntry struct {
	phid     string
	storedAt time.Time
}

func NewProjectCache(ttl time.Duration) *ProjectCache {
	return &ProjectCache{
		ttl:     ttl,
		entries: make(map[string]projectCacheEntry),
	}
}

func (c *ProjectCache) Get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[name]
	if !ok || c.expired(e) {
		return "", false
	}
	return e.phid, true
}

func (c *ProjectCache) Put(name, phid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok && !c.expired(e) {
		return
	}
	c.entries[name] = projectCacheEntry{phid: phid, storedAt: time.Now()}
}

func (c *ProjectCache) expired(e projectCacheEntry) bool {
	return c.ttl > 0 && time.Since(e.storedAt) > c.ttl
}

// ProjectResolver translates the project references named in a request
// into canonical PHIDs.
type ProjectResolver interface {
	// Resolve maps refs to PHIDs, deduplicated, in first-seen order.
	// An empty ref list resolves to an empty result, meaning no
	// project scoping.
	Resolve(ctx context.Context, refs []model.ProjectRef) ([]string, error)
}

type projectResolver struct {
	gw    Gateway
	cache *ProjectCache
}

var _ ProjectResolver = &projectResolver{}

func NewProjectResolver(gw Gateway, cache *ProjectCache) ProjectResolver {
	return &projectResolver{
		gw:    gw,
		cache: cache,
	}
}

func (r *projectResolver) Resolve(ctx context.Context, refs []model.ProjectRef) ([]string, error) {
	phids := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))

	for _, ref := range refs {
		phid := ref.PHID
		if phid == "" {
			resolved, err := r.resolveName(ctx, ref.Name)
			if err != nil {
				return nil, err
			}
			phid = resolved
		}
		if !seen[phid] {
			seen[phid] = true
			phids = append(phids, phid)
		}
	}
	return phids, nil
}

func (r *projectResolver) resolveName(ctx context.Context, name string) (string, error) {
	if phid, ok := r.cache.Get(name); ok {
		return phid, nil
	}

	projects, err := r.gw.SearchProjects(ctx, name)
	if err != nil {
		return "", fmt.Errorf("searching for project %q: %w", name, err)
	}

	// The name constraint is a prefix search on the remote side, so an
	// exact comparison is still needed here.
	var matches []model.Project
	for _, p := range projects {
		if p.Name == name {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	case 1:
		slog.InfoContext(ctx, "resolved project", "name", name, "phid", matches[0].PHID)
		r.cache.Put(name, matches[0].PHID)
		return matches[0].PHID, nil
	default:
		return "", fmt.Errorf("%w: %q matches %d projects", ErrProjectNotFound, name, len(matches))
	}
}
