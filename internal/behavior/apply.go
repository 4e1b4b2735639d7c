package behavior

import (
	"context"
	"fmt"

	"github.com/oriys/rift/internal/domain"
)

// Apply runs the behaviors pipeline against a materialized Is response, in
// the fixed order wait, copy, lookup, decorate, shellTransform. repeat is
// not applied here: it's consumed by the response cycler before a
// response is even selected for materialization.
//
// A failure from any stage is returned as-is; callers convert it to a 500
// with a diagnostic body rather than letting it propagate further, so one
// bad behavior never takes the imposter down.
func Apply(ctx context.Context, b *domain.Behaviors, req *domain.Request, view *ResponseView) error {
	if b == nil {
		return nil
	}

	ApplyWait(b)

	for _, spec := range b.Copy {
		applyCopy(spec, req, view)
	}

	for _, spec := range b.Lookup {
		if err := CSVLookup(spec, req, view); err != nil {
			return fmt.Errorf("behavior: lookup: %w", err)
		}
	}

	if b.Decorate != "" {
		if err := Decorate(b.Decorate, req, view); err != nil {
			return fmt.Errorf("behavior: decorate: %w", err)
		}
	}

	if b.ShellTransform != "" {
		if err := ShellTransform(ctx, b.ShellTransform, req, view); err != nil {
			return fmt.Errorf("behavior: shellTransform: %w", err)
		}
	}

	return nil
}

func applyCopy(spec domain.CopySpec, req *domain.Request, view *ResponseView) {
	var value string
	switch spec.From {
	case domain.FieldPath:
		value = req.Path
	case domain.FieldMethod:
		value = req.Method
	case domain.FieldBody:
		value = req.Body
	default:
		if vals, ok := req.Headers[spec.From]; ok && len(vals) > 0 {
			value = vals[0]
		} else if vals, ok := req.Query[spec.From]; ok && len(vals) > 0 {
			value = vals[0]
		}
	}
	if view.Headers == nil {
		view.Headers = map[string]interface{}{}
	}
	view.Headers[spec.Into] = value
}
