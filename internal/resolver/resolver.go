// Package resolver translates human-readable entity references (names, keys,
// emails) or canonical IDs into Linear entity records, with TTL caching to
// avoid redundant catalog calls.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"trackgate/internal/cache"
	"trackgate/internal/linear"
)

// Kind identifies which catalog an entity reference is resolved against.
type Kind string

const (
	KindTeam    Kind = "team"
	KindUser    Kind = "user"
	KindProject Kind = "project"
	KindState   Kind = "state"
)

// Label returns the user-facing singular form, e.g. "Team".
func (k Kind) Label() string {
	switch k {
	case KindTeam:
		return "Team"
	case KindUser:
		return "User"
	case KindProject:
		return "Project"
	case KindState:
		return "State"
	}
	return string(k)
}

func (k Kind) plural() string {
	return string(k) + "s"
}

// Entity is the canonical resolved record. ID is always the remote
// identifier; the remaining fields are denormalized snapshots taken at
// resolution time and may go stale within the cache TTL window.
type Entity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Key         string `json:"key,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	Type        string `json:"type,omitempty"`
	Color       string `json:"color,omitempty"`
}

// FromTeam converts a catalog team into a resolved entity.
func FromTeam(t linear.Team) Entity {
	return Entity{ID: t.ID, Name: t.Name, Key: t.Key}
}

// FromUser converts a catalog user into a resolved entity.
func FromUser(u linear.User) Entity {
	return Entity{ID: u.ID, Name: u.Name, DisplayName: u.DisplayName, Email: u.Email}
}

// FromProject converts a catalog project into a resolved entity.
func FromProject(p linear.Project) Entity {
	return Entity{ID: p.ID, Name: p.Name}
}

// FromState converts a catalog workflow state into a resolved entity.
func FromState(s linear.WorkflowState) Entity {
	return Entity{ID: s.ID, Name: s.Name, Type: s.Type, Color: s.Color}
}

// DefaultTTL bounds how long a resolution or catalog snapshot is reused.
const DefaultTTL = 5 * time.Minute

// idPattern matches canonical identifiers: 8-4-4-4-12 hex groups,
// case-insensitive. Anything else is treated as a human-readable name.
var idPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsID reports whether ref is identifier-shaped.
func IsID(ref string) bool {
	return idPattern.MatchString(ref)
}

// Resolver resolves entity references against a Linear catalog. It owns its
// caches exclusively; no other component reads or writes them.
type Resolver struct {
	catalog linear.Catalog
	ttl     time.Duration
	clock   func() time.Time
	log     *slog.Logger

	entities    *cache.TTL[Entity]
	collections *cache.TTL[[]Entity]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL overrides the cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithClock injects a clock for deterministic TTL tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.clock = now }
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// New creates a Resolver over the given catalog.
func New(catalog linear.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog: catalog,
		ttl:     DefaultTTL,
		clock:   time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.entities = cache.NewWithClock[Entity](r.clock)
	r.collections = cache.NewWithClock[[]Entity](r.clock)
	return r
}

// cacheKey folds the reference case so "ENG" and "eng" share an entry; the
// name scan is case-insensitive anyway.
func cacheKey(kind Kind, ref, contextTeamID string) string {
	return string(kind) + ":" + strings.ToLower(ref) + ":" + contextTeamID
}

// Resolve turns a reference for the given kind into a resolved entity.
// A live cached resolution is returned with zero remote calls. An
// identifier-shaped reference is fetched directly and never demoted to a
// name search. Anything else is matched case-insensitively against the
// kind's full collection; first match wins. For KindState a non-empty
// contextTeamID narrows the scan to that team's states.
//
// The second return value is false when the reference matched nothing.
// Catalog failures are logged and folded into the same absence outcome;
// they are never retried here.
func (r *Resolver) Resolve(ctx context.Context, kind Kind, ref, contextTeamID string) (*Entity, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, false
	}
	if kind != KindState {
		contextTeamID = ""
	}

	key := cacheKey(kind, ref, contextTeamID)
	if e, ok := r.entities.Get(key); ok {
		return &e, true
	}

	var (
		entity *Entity
		found  bool
	)
	if IsID(ref) {
		entity, found = r.fetchByID(ctx, kind, ref)
	} else {
		entity, found = r.scanByName(ctx, kind, ref, contextTeamID)
	}
	if !found {
		return nil, false
	}

	r.entities.Set(key, *entity, r.ttl)
	return entity, true
}

func (r *Resolver) fetchByID(ctx context.Context, kind Kind, id string) (*Entity, bool) {
	var (
		e   Entity
		err error
	)
	switch kind {
	case KindTeam:
		var t *linear.Team
		if t, err = r.catalog.Team(ctx, id); err == nil {
			e = FromTeam(*t)
		}
	case KindUser:
		var u *linear.User
		if u, err = r.catalog.User(ctx, id); err == nil {
			e = FromUser(*u)
		}
	case KindProject:
		var p *linear.Project
		if p, err = r.catalog.Project(ctx, id); err == nil {
			e = FromProject(*p)
		}
	case KindState:
		var s *linear.WorkflowState
		if s, err = r.catalog.WorkflowState(ctx, id); err == nil {
			e = FromState(*s)
		}
	default:
		return nil, false
	}
	if err != nil {
		r.log.Warn("entity lookup by id failed", "kind", kind, "id", id, "error", err)
		return nil, false
	}
	return &e, true
}

func (r *Resolver) scanByName(ctx context.Context, kind Kind, ref, contextTeamID string) (*Entity, bool) {
	list, err := r.collection(ctx, kind, contextTeamID)
	if err != nil {
		r.log.Warn("catalog fetch failed", "kind", kind, "error", err)
		return nil, false
	}

	for i := range list {
		if matches(kind, &list[i], ref) {
			return &list[i], true
		}
	}
	return nil, false
}

// matches applies the per-kind case-insensitive equality rules.
func matches(kind Kind, e *Entity, ref string) bool {
	switch kind {
	case KindTeam:
		return strings.EqualFold(e.Name, ref) || strings.EqualFold(e.Key, ref)
	case KindUser:
		return strings.EqualFold(e.Name, ref) || strings.EqualFold(e.DisplayName, ref) || strings.EqualFold(e.Email, ref)
	default:
		return strings.EqualFold(e.Name, ref)
	}
}

// collection fetches (or reuses a cached snapshot of) the full catalog for a
// kind. Only states honor the team scope.
func (r *Resolver) collection(ctx context.Context, kind Kind, contextTeamID string) ([]Entity, error) {
	key := "collection:" + string(kind) + ":" + contextTeamID
	if list, ok := r.collections.Get(key); ok {
		return list, nil
	}

	var list []Entity
	switch kind {
	case KindTeam:
		teams, err := r.catalog.Teams(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range teams {
			list = append(list, FromTeam(t))
		}
	case KindUser:
		users, err := r.catalog.Users(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			list = append(list, FromUser(u))
		}
	case KindProject:
		projects, err := r.catalog.Projects(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			list = append(list, FromProject(p))
		}
	case KindState:
		states, err := r.catalog.WorkflowStates(ctx, contextTeamID)
		if err != nil {
			return nil, err
		}
		for _, s := range states {
			list = append(list, FromState(s))
		}
	default:
		return nil, fmt.Errorf("unknown entity kind: %s", kind)
	}

	r.collections.Set(key, list, r.ttl)
	return list, nil
}

// maxListed bounds how many candidates a not-found message enumerates.
const maxListed = 10

// NotFoundMessage builds the user-facing message for a failed resolution,
// enumerating up to ten valid candidates. It never fails: when the catalog
// itself is unreachable the message degrades to a generic suffix.
func (r *Resolver) NotFoundMessage(ctx context.Context, kind Kind, value string) string {
	prefix := fmt.Sprintf("%s '%s' not found.", kind.Label(), value)

	list, err := r.collection(ctx, kind, "")
	if err != nil {
		return fmt.Sprintf("%s Unable to fetch available %s.", prefix, kind.plural())
	}
	if len(list) == 0 {
		return fmt.Sprintf("%s No %s exist in the workspace.", prefix, kind.plural())
	}

	names := make([]string, 0, maxListed)
	for i, e := range list {
		if i == maxListed {
			break
		}
		names = append(names, candidateLabel(kind, e))
	}
	msg := fmt.Sprintf("%s Available %s: %s", prefix, kind.plural(), strings.Join(names, ", "))
	if len(list) > maxListed {
		msg += fmt.Sprintf(", and %d more", len(list)-maxListed)
	}
	return msg
}

// candidateLabel formats one catalog entry for the not-found listing.
func candidateLabel(kind Kind, e Entity) string {
	switch kind {
	case KindTeam:
		if e.Key != "" {
			return fmt.Sprintf("%s (%s)", e.Name, e.Key)
		}
	case KindUser:
		display := e.DisplayName
		if display == "" {
			display = e.Name
		}
		if e.Email != "" {
			return fmt.Sprintf("%s (%s)", display, e.Email)
		}
		return display
	}
	return e.Name
}
