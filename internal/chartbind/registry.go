package chartbind

import (
	"errors"
	"fmt"
	"sort"
)

const (
	HookGrowthChart = "GrowthChart"
	HookChart       = "Chart"
)

// Registry is an immutable table of hooks by name.
type Registry struct {
	hooks map[string]*Hook
	names []string
}

func NewRegistry(hooks map[string]*Hook) (*Registry, error) {
	r := &Registry{hooks: make(map[string]*Hook, len(hooks))}
	for name, h := range hooks {
		if name == "" || h == nil {
			return nil, newError(CodeValidation, fmt.Sprintf("invalid registry entry %q", name), nil)
		}
		r.hooks[name] = h
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// DefaultRegistry binds GrowthChart to the given profile and Chart to the
// dashboard builder, both drawing through backend.
func DefaultRegistry(profile Profile, backend Backend) (*Registry, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	return NewRegistry(map[string]*Hook{
		HookGrowthChart: NewHook(HookGrowthChart, GrowthBuilder{Profile: profile.withDefaults()}, backend),
		HookChart:       NewHook(HookChart, DashboardBuilder{}, backend),
	})
}

// Lookup returns the named hook.
func (r *Registry) Lookup(name string) (*Hook, error) {
	h, ok := r.hooks[name]
	if !ok {
		return nil, newError(CodeUnknownHook, fmt.Sprintf("unknown hook %q", name), nil)
	}
	return h, nil
}

// Names returns the registered hook names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Count returns the number of live charts across all hooks.
func (r *Registry) Count() int {
	n := 0
	for _, h := range r.hooks {
		n += h.Count()
	}
	return n
}

// Close releases every live chart of every hook.
func (r *Registry) Close() error {
	var errs []error
	for _, name := range r.names {
		if err := r.hooks[name].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
