package audit

import (
	"context"
	"errors"

	id "taxgate/pkg/domain"
)

// Appender accepts audit record writes. Implementations must tolerate
// concurrent appends from many requests; append visibility is the only
// ordering guarantee required.
type Appender interface {
	Append(ctx context.Context, rec Record) error
}

// Store is the full persistence collaborator: append-only writes plus the
// read surface used by compliance review endpoints.
type Store interface {
	Appender
	ListRecent(ctx context.Context, limit int) ([]Record, error)
	ListByPrincipal(ctx context.Context, principalID id.UserID) ([]Record, error)
}

// Fanout appends every record to the durable primary store and to any number
// of streaming sinks (e.g. Kafka). A failing target does not stop the others;
// the joined error surfaces so the recorder can fall back. Reads come from
// the primary.
type Fanout struct {
	primary Store
	sinks   []Appender
}

func NewFanout(primary Store, sinks ...Appender) *Fanout {
	return &Fanout{primary: primary, sinks: sinks}
}

func (f *Fanout) Append(ctx context.Context, rec Record) error {
	errs := []error{f.primary.Append(ctx, rec)}
	for _, sink := range f.sinks {
		errs = append(errs, sink.Append(ctx, rec))
	}
	return errors.Join(errs...)
}

func (f *Fanout) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	return f.primary.ListRecent(ctx, limit)
}

func (f *Fanout) ListByPrincipal(ctx context.Context, principalID id.UserID) ([]Record, error) {
	return f.primary.ListByPrincipal(ctx, principalID)
}
