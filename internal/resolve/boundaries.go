package resolve

import (
	"context"
	"fmt"

	"github.com/nathanhui97/autoflow/internal/dom"
	"github.com/nathanhui97/autoflow/internal/signature"
)

// ResolveAcrossBoundaries resolves a path that crosses shadow or frame
// boundaries: each host resolves in the current scope, the scope steps
// inside it, and the target resolves in the final scope. Closed shadow
// roots and cross-origin frames fail loudly; resolving in the wrong scope
// would act on the wrong element.
func (r *Resolver) ResolveAcrossBoundaries(ctx context.Context, doc dom.Document, path signature.DOMPath, opts Options) (Result, error) {
	scope := doc
	for i, step := range path.Boundaries {
		host := r.Resolve(ctx, scope, step.Host, opts)
		if !host.Found() {
			err := fmt.Errorf("resolve: %s boundary %d: host %s: %s", step.Type, i, step.Host.Label(), host.Outcome)
			host.Err = err
			return host, err
		}
		var (
			next dom.Document
			err  error
		)
		switch step.Type {
		case signature.BoundaryShadow:
			next, err = scope.EnterShadow(ctx, host.Element)
		case signature.BoundaryFrame:
			next, err = scope.EnterFrame(ctx, host.Element)
		default:
			err = fmt.Errorf("unknown boundary type %q", step.Type)
		}
		if err != nil {
			err = fmt.Errorf("resolve: %s boundary %d: %w", step.Type, i, err)
			return Result{Outcome: OutcomeNotFound, Err: err}, err
		}
		scope = next
	}
	res := r.Resolve(ctx, scope, path.Target, opts)
	res.Scope = scope
	return res, nil
}
