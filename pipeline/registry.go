package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Stage identifies a pipeline phase. Stage order is fixed; adding or removing
// a handler affects only its own stage.
type Stage int

const (
	// StageExtraction pulls the raw token out of the request.
	StageExtraction Stage = iota
	// StageValidation checks the token locally or via introspection.
	StageValidation
	// StagePrincipalConstruction maps validated claims to a principal.
	StagePrincipalConstruction
	// StageEntryValidation consults the store for revocation records.
	StageEntryValidation
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageExtraction, StageValidation, StagePrincipalConstruction, StageEntryValidation}

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageExtraction:
		return "extraction"
	case StageValidation:
		return "validation"
	case StagePrincipalConstruction:
		return "principal-construction"
	case StageEntryValidation:
		return "entry-validation"
	default:
		return "unknown"
	}
}

// Handler is one unit of pipeline work. Handlers read and write only the
// passed context and their injected collaborators; domain failures are
// recorded on the context via Reject, while a returned error signals an
// unexpected fault that aborts the run.
type Handler func(ctx context.Context, pc *Context) error

// Filter gates whether a handler participates in a run. Filters must be
// cheap, synchronous, and side-effect free: no network I/O, no context
// mutation.
type Filter func(pc *Context) bool

// Descriptor is one tagged handler record: where it runs, when it applies,
// and in what order.
type Descriptor struct {
	Name     string
	Stage    Stage
	Priority int
	Filter   Filter
	Handle   Handler
}

// Registry is the immutable, ordered handler table. Built once at startup;
// read-only for the pipeline's lifetime, so it is safe for concurrent runs.
type Registry struct {
	byStage map[Stage][]Descriptor
}

// NewRegistry builds a registry from descriptors. Within a stage, handlers
// run in ascending priority; ties keep registration order (stable sort).
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	byStage := make(map[Stage][]Descriptor)
	for _, d := range descs {
		if d.Name == "" {
			return nil, errors.New("pipeline: descriptor missing name")
		}
		if d.Handle == nil {
			return nil, fmt.Errorf("pipeline: handler %q is nil", d.Name)
		}
		byStage[d.Stage] = append(byStage[d.Stage], d)
	}
	for stage := range byStage {
		ds := byStage[stage]
		sort.SliceStable(ds, func(i, j int) bool { return ds[i].Priority < ds[j].Priority })
	}
	return &Registry{byStage: byStage}, nil
}

// Handlers returns the ordered descriptors for a stage.
func (r *Registry) Handlers(stage Stage) []Descriptor {
	return r.byStage[stage]
}

// RunStage invokes every handler registered for stage whose filter accepts
// the context, in order. A terminal context short-circuits immediately, and
// ctx cancellation is checked between handlers.
func (r *Registry) RunStage(ctx context.Context, stage Stage, pc *Context) error {
	if pc == nil {
		panic("pipeline: nil context")
	}
	for _, d := range r.byStage[stage] {
		if pc.Terminal() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Filter != nil && !d.Filter(pc) {
			continue
		}
		if err := d.Handle(ctx, pc); err != nil {
			return fmt.Errorf("pipeline: handler %q: %w", d.Name, err)
		}
	}
	return nil
}

// Run drives the context through every stage in order, stopping early once
// the context is terminal.
func (r *Registry) Run(ctx context.Context, pc *Context) error {
	for _, stage := range Stages {
		if pc.Terminal() {
			return nil
		}
		if err := r.RunStage(ctx, stage, pc); err != nil {
			return err
		}
	}
	return nil
}
