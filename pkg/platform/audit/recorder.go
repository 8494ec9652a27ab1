package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"taxgate/pkg/platform/audit/metrics"
	"taxgate/pkg/platform/circuit"
	"taxgate/pkg/requestcontext"
)

const (
	defaultStoreTimeout = 5 * time.Second
	// While the circuit is open every write still probes the store, but with a
	// tight deadline so a dead store cannot slow the request path.
	probeTimeout = 1 * time.Second
)

// Recorder writes audit records and never raises to the caller: a failed
// append is mirrored in full to the fallback log channel and counted, but the
// in-flight business outcome is unaffected. Audit durability degrades; the
// record itself never silently disappears.
//
// Sync mode appends inline (bounded by a store timeout). WithAsyncBuffer
// switches to a buffered channel drained by one background worker; Close
// drains the buffer.
type Recorder struct {
	store   Appender
	logger  *slog.Logger
	metrics *metrics.Metrics
	breaker *circuit.Breaker

	storeTimeout time.Duration

	inbox     chan Record
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the fallback log channel. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

// WithMetrics attaches audit pipeline metrics.
func WithMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// WithAsyncBuffer enables asynchronous recording with the given buffer size.
func WithAsyncBuffer(size int) RecorderOption {
	return func(r *Recorder) { r.inbox = make(chan Record, size) }
}

// WithStoreTimeout bounds each store append. Defaults to 5s.
func WithStoreTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.storeTimeout = d }
}

// NewRecorder builds a Recorder over the given append-only store.
func NewRecorder(store Appender, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:        store,
		logger:       slog.Default(),
		breaker:      circuit.New("audit-store"),
		storeTimeout: defaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.inbox != nil {
		r.wg.Add(1)
		go r.drain()
	}
	return r
}

// Record captures one audit record. It fills in the record ID, timestamp, and
// request metadata from ctx when absent, then persists either inline or via
// the async worker. It never returns an error and never panics the caller.
func (r *Recorder) Record(ctx context.Context, rec Record) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = requestcontext.Now(ctx)
	}
	if rec.RequestID == "" {
		rec.RequestID = requestcontext.RequestID(ctx)
	}
	if rec.ClientIP == "" {
		rec.ClientIP = requestcontext.ClientIP(ctx)
	}
	if rec.UserAgent == "" {
		rec.UserAgent = requestcontext.UserAgent(ctx)
	}

	if r.inbox == nil {
		r.persist(ctx, rec)
		return
	}

	select {
	case r.inbox <- rec:
	default:
		// Buffer full. Do not block the request; the record survives in the
		// fallback log.
		if r.metrics != nil {
			r.metrics.IncDropped()
		}
		r.fallback(rec, errAuditBufferFull)
	}
}

// Close stops the async worker after draining buffered records. Safe to call
// on a sync-mode recorder and safe to call twice.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		if r.inbox != nil {
			close(r.inbox)
		}
	})
	r.wg.Wait()
}

func (r *Recorder) drain() {
	defer r.wg.Done()
	for rec := range r.inbox {
		r.persist(context.Background(), rec)
	}
}

func (r *Recorder) persist(ctx context.Context, rec Record) {
	// Audit completeness takes priority over cancellation: the caller may have
	// disconnected, the write still happens.
	ctx = context.WithoutCancel(ctx)

	timeout := r.storeTimeout
	if r.breaker.IsOpen() {
		timeout = probeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.store.Append(ctx, rec); err != nil {
		if r.metrics != nil {
			r.metrics.IncWriteFailure()
		}
		r.fallback(rec, err)
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.Error("audit store circuit opened; records degrade to fallback log")
		}
		return
	}

	if r.metrics != nil {
		r.metrics.IncWrite()
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.Info("audit store circuit closed; durable appends restored")
	}
}

// fallback mirrors the full record to the process error stream so a failed
// store write never makes a record disappear.
func (r *Recorder) fallback(rec Record, err error) {
	r.logger.Error("audit write degraded to fallback log",
		"error", err,
		"audit_id", rec.ID.String(),
		"timestamp", rec.Timestamp,
		"principal_id", rec.PrincipalID.String(),
		"role", rec.Role,
		"action", rec.Action,
		"resource_type", rec.ResourceType,
		"resource_id", rec.ResourceID,
		"org_id", rec.OrgID.String(),
		"outcome", string(rec.Outcome),
		"reason", rec.Reason,
		"request_id", rec.RequestID,
		"client_ip", rec.ClientIP,
		"log_type", "audit_fallback",
	)
}

type auditBufferFullError struct{}

func (auditBufferFullError) Error() string { return "audit buffer full" }

var errAuditBufferFull = auditBufferFullError{}
