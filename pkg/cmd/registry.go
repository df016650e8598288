package cmd

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync/atomic"
)

var (
	// ErrDuplicateCommand is wrapped by a LoadError when two specs share a
	// name or alias (case-insensitively).
	ErrDuplicateCommand = errors.New("duplicate command")
	// ErrInvalidCommand is wrapped by a LoadError for a malformed spec.
	ErrInvalidCommand = errors.New("invalid command")
)

// LoadError aborts a registry load. The previously published commands stay active.
type LoadError struct {
	Command string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("load commands: %v", e.Err)
	}
	return fmt.Sprintf("load command %q: %v", e.Command, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

type index struct {
	byKey map[string]*Spec
	specs []*Spec // sorted by name
}

// Registry stores commands by name and alias. Loads build a new index and
// publish it atomically; readers never lock.
type Registry struct {
	idx atomic.Pointer[index]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	r.idx.Store(&index{byKey: map[string]*Spec{}})
	return r
}

// Load replaces the registry contents with every spec src yields. It is all
// or nothing: on error nothing is published.
func (r *Registry) Load(src Source) error {
	specs, err := src.Specs()
	if err != nil {
		return &LoadError{Err: err}
	}

	next := &index{byKey: make(map[string]*Spec, len(specs))}
	for i := range specs {
		s := specs[i].clone()
		if err := s.Validate(); err != nil {
			return &LoadError{Command: s.Name, Err: fmt.Errorf("%w: %v", ErrInvalidCommand, err)}
		}
		for _, k := range s.Keys() {
			if prev, ok := next.byKey[k]; ok {
				return &LoadError{
					Command: s.Name,
					Err:     fmt.Errorf("%w: %q already used by %q", ErrDuplicateCommand, k, prev.Name),
				}
			}
			next.byKey[k] = s
		}
		next.specs = append(next.specs, s)
	}
	slices.SortFunc(next.specs, func(a, b *Spec) int { return strings.Compare(a.Name, b.Name) })

	r.idx.Store(next)
	return nil
}

// Resolve returns the spec whose name or alias matches token, ignoring case.
func (r *Registry) Resolve(token string) (*Spec, bool) {
	s, ok := r.idx.Load().byKey[strings.ToLower(token)]
	return s, ok
}

// List yields specs sorted by name, limited to category when it is not empty.
// The sequence reads the index current at each iteration start.
func (r *Registry) List(category string) iter.Seq[*Spec] {
	return func(yield func(*Spec) bool) {
		for _, s := range r.idx.Load().specs {
			if category != "" && s.Category != category {
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// Categories returns the distinct categories in first-seen (name) order.
func (r *Registry) Categories() []string {
	var out []string
	for s := range r.List("") {
		if !slices.Contains(out, s.Category) {
			out = append(out, s.Category)
		}
	}
	return out
}

// Len returns the number of distinct commands.
func (r *Registry) Len() int { return len(r.idx.Load().specs) }
