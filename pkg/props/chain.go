// Package props resolves layered job configuration by walking a flow's
// property-inheritance chain.
package props

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/persistence"
)

// ErrInheritanceCycle indicates a property source chain that loops back on
// itself. Chains are supposed to be finite; a cycle is a corrupt install.
var ErrInheritanceCycle = errors.New("property inheritance cycle")

// Store supplies the raw key/value pairs of one property source. Override
// semantics between sources are decided here, not in the store.
type Store interface {
	Properties(ctx context.Context, project *models.Project, flow *models.Flow, source string) (map[string]string, error)
}

// Resolver walks property chains and materializes effective configuration.
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver creates a resolver backed by the given property store.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With("module", "props"),
	}
}

// InheritanceChain returns the ordered ancestor sources of the given source,
// starting with the source itself and ending at the chain root. A source
// with no inheritance yields a single-element result.
func (r *Resolver) InheritanceChain(flow *models.Flow, source string) ([]string, error) {
	entry := flow.FlowProps(source)
	if entry == nil {
		return nil, persistence.ErrPropsNotFound
	}

	chain := []string{source}
	visited := map[string]struct{}{source: {}}

	for entry.InheritedSource != "" {
		parent := entry.InheritedSource
		if _, seen := visited[parent]; seen {
			return nil, ErrInheritanceCycle
		}

		entry = flow.FlowProps(parent)
		if entry == nil {
			return nil, persistence.ErrPropsNotFound
		}

		chain = append(chain, parent)
		visited[parent] = struct{}{}
	}

	return chain, nil
}

// DependentChain returns the sources between a job's own property source and
// the given target source, exclusive of the target. The target must be an
// ancestor of the job's source; an unreachable target is a not-found error,
// never an unbounded walk.
func (r *Resolver) DependentChain(flow *models.Flow, jobID, target string) ([]string, error) {
	node := flow.Node(jobID)
	if node == nil {
		return nil, persistence.ErrNodeNotFound
	}

	entry := flow.FlowProps(node.PropsSource)
	if entry == nil {
		return nil, persistence.ErrPropsNotFound
	}

	var depending []string

	visited := make(map[string]struct{})

	for entry.Source != target {
		if _, seen := visited[entry.Source]; seen {
			return nil, ErrInheritanceCycle
		}

		visited[entry.Source] = struct{}{}
		depending = append(depending, entry.Source)

		if entry.InheritedSource == "" {
			return nil, persistence.ErrPropsNotFound
		}

		entry = flow.FlowProps(entry.InheritedSource)
		if entry == nil {
			return nil, persistence.ErrPropsNotFound
		}
	}

	return depending, nil
}

// Resolve merges the property chain of the given source into one effective
// key/value map. A key defined closer to the job overrides the same key
// defined further up the chain.
func (r *Resolver) Resolve(ctx context.Context, project *models.Project, flow *models.Flow, source string) (map[string]string, error) {
	chain, err := r.InheritanceChain(flow, source)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]string)

	// Walk root-first so closer sources win.
	for i := len(chain) - 1; i >= 0; i-- {
		values, err := r.store.Properties(ctx, project, flow, chain[i])
		if err != nil {
			return nil, err
		}

		for key, value := range values {
			merged[key] = value
		}
	}

	return merged, nil
}

// ResolveForJob resolves the effective configuration of one job, starting at
// the job's own property source. Per-job overrides win over every chain
// source.
func (r *Resolver) ResolveForJob(ctx context.Context, project *models.Project, flow *models.Flow, jobID string) (map[string]string, error) {
	node := flow.Node(jobID)
	if node == nil {
		return nil, persistence.ErrNodeNotFound
	}

	merged := make(map[string]string)

	if node.PropsSource != "" {
		resolved, err := r.Resolve(ctx, project, flow, node.PropsSource)
		if err != nil {
			return nil, err
		}

		merged = resolved
	}

	for key, value := range node.Overrides {
		merged[key] = value
	}

	return merged, nil
}
