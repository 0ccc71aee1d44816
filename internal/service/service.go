// Package service holds the entity services behind the HTTP handlers. Each
// service validates input, checks referenced entities and delegates storage to
// a repository.
package service

import (
	"context"

	"chirp/internal/observability"

	"go.opentelemetry.io/otel/codes"
)

// Pagination selects a page of a newest-first listing. Zero values fall back
// to the repository defaults.
type Pagination struct {
	Limit  int
	Offset int
}

// startSpan opens a service span. The returned func ends it and records the
// error pointed to, if any.
func startSpan(ctx context.Context, service, method string) (context.Context, func(*error)) {
	ctx, span := observability.StartServiceSpan(ctx, service, method)
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			observability.RecordErrorInContext(ctx, *errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}
