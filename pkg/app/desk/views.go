package desk

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// View is a consumer whose presence keeps background activity alive.
type View string

const (
	ViewClient  View = "client"
	ViewManager View = "manager"
)

var ErrUnknownView = errors.New("unknown view")

// ParseView maps a view name to a View.
func ParseView(name string) (View, error) {
	switch v := View(name); v {
	case ViewClient, ViewManager:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, name)
	}
}

// Views ties each view to the scopes it needs. The client view runs the
// generator and the price feed; the manager view runs the generator and the
// volume sampler. The generator scope is shared so it runs once no matter
// how many views are mounted.
type Views struct {
	Generator *Scope
	Feed      *Scope
	Sampler   *Scope

	deps map[View][]*Scope
}

// NewViews builds the scopes. A nil activity yields a scope that runs nothing.
func NewViews(ctx context.Context, log *zap.SugaredLogger, generator, feed, sampler Activity) *Views {
	v := &Views{
		Generator: NewScope(ctx, "generator", log, activities(generator)...),
		Feed:      NewScope(ctx, "feed", log, activities(feed)...),
		Sampler:   NewScope(ctx, "volume", log, activities(sampler)...),
	}
	v.deps = map[View][]*Scope{
		ViewClient:  {v.Generator, v.Feed},
		ViewManager: {v.Generator, v.Sampler},
	}
	return v
}

func activities(a Activity) []Activity {
	if a == nil {
		return nil
	}
	return []Activity{a}
}

// Mount acquires every scope of view. The returned func unmounts it and is
// safe to call more than once.
func (v *Views) Mount(view View) (unmount func(), err error) {
	scopes, ok := v.deps[view]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}
	releases := make([]func(), 0, len(scopes))
	for _, s := range scopes {
		releases = append(releases, s.Acquire())
	}
	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}, nil
}

// MountAll mounts every view, used when the simulation runs for the whole
// process lifetime.
func (v *Views) MountAll() (unmount func()) {
	var all []func()
	for _, view := range []View{ViewClient, ViewManager} {
		u, _ := v.Mount(view)
		all = append(all, u)
	}
	return func() {
		for _, u := range all {
			u()
		}
	}
}
