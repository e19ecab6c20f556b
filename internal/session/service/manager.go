// Package service owns the device session lifecycle: resolution at launch, sliding refresh,
// logout, and the periodic expiry sweep.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"storefront/sessioncore/internal/session/domain"
	"storefront/sessioncore/internal/session/repository"
	"storefront/sessioncore/internal/telemetry"
)

// DefaultTTL is the sliding session lifetime applied on every successful refresh.
const DefaultTTL = 30 * 24 * time.Hour

// Authority is the remote identity/approval service. It is the source of truth for approval and role.
type Authority interface {
	ValidateRefreshToken(ctx context.Context, refreshToken string) (*domain.AuthorityDecision, error)
}

// Manager runs the session state machine for one device. All operations on the store are serialized.
type Manager struct {
	store     repository.Store
	authority Authority
	ttl       time.Duration
	clock     clockwork.Clock
	emitter   telemetry.EventEmitter
	metrics   *telemetry.Metrics
	tracer    trace.Tracer

	lock   *semaphore.Weighted
	flight singleflight.Group

	flightMu sync.Mutex
	inflight *resolveFlight
	gen      uint64
}

// resolveFlight is one shared Resolve. Its context is cancelled once every caller has left.
type resolveFlight struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the trusted clock used for expiry decisions.
func WithClock(c clockwork.Clock) Option { return func(m *Manager) { m.clock = c } }

// WithEmitter sets the lifecycle event sink.
func WithEmitter(e telemetry.EventEmitter) Option { return func(m *Manager) { m.emitter = e } }

// WithMetrics sets the lifecycle counters.
func WithMetrics(mt *telemetry.Metrics) Option { return func(m *Manager) { m.metrics = mt } }

// WithTracer overrides the tracer; the default comes from the global TracerProvider.
func WithTracer(t trace.Tracer) Option { return func(m *Manager) { m.tracer = t } }

// NewManager returns a Manager over store and authority. ttl <= 0 means DefaultTTL.
func NewManager(store repository.Store, authority Authority, ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		store:     store,
		authority: authority,
		ttl:       ttl,
		clock:     clockwork.NewRealClock(),
		lock:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer("storefront/sessioncore/session")
	}
	return m
}

type resolution struct {
	verdict domain.Verdict
	err     error
}

// Resolve decides where the presentation layer should route the actor and purges any
// session that may not be used. Liveness is checked before approval. Concurrent callers
// share one resolution. A caller that gives up receives ctx.Err(); once every caller has
// given up the shared resolution is cancelled, except for a save already under way.
//
// The returned verdict is always safe to act on, even when err is non-nil.
func (m *Manager) Resolve(ctx context.Context) (domain.Verdict, error) {
	f := m.join(ctx)
	defer m.leave(f)

	ch := m.flight.DoChan(f.key, func() (interface{}, error) {
		v, err := m.resolve(f.ctx)
		return resolution{verdict: v, err: err}, nil
	})
	select {
	case <-ctx.Done():
		return domain.Unauthenticated(), ctx.Err()
	case r := <-ch:
		res := r.Val.(resolution)
		return res.verdict, res.err
	}
}

func (m *Manager) join(ctx context.Context) *resolveFlight {
	m.flightMu.Lock()
	defer m.flightMu.Unlock()
	if m.inflight == nil {
		m.gen++
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		m.inflight = &resolveFlight{key: "resolve-" + strconv.FormatUint(m.gen, 10), ctx: fctx, cancel: cancel}
	}
	m.inflight.waiters++
	return m.inflight
}

func (m *Manager) leave(f *resolveFlight) {
	m.flightMu.Lock()
	defer m.flightMu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if m.inflight == f {
		m.inflight = nil
	}
}

func (m *Manager) resolve(ctx context.Context) (verdict domain.Verdict, err error) {
	ctx, span := m.tracer.Start(ctx, "session.Resolve")
	defer func() {
		span.SetAttributes(attribute.String("session.verdict", verdict.String()))
		endSpan(span, err)
		m.metrics.Resolution(ctx, verdict.String())
	}()

	if err := m.lock.Acquire(ctx, 1); err != nil {
		return domain.Unauthenticated(), err
	}
	defer m.lock.Release(1)

	sess, _, err := m.load(ctx)
	if err != nil {
		return domain.Unauthenticated(), err
	}
	if sess == nil {
		m.emit(ctx, telemetry.EventResolved, nil, domain.Unauthenticated(), "no_session")
		return domain.Unauthenticated(), nil
	}
	if !sess.IsLive(m.clock.Now()) {
		if err := m.purge(ctx, sess, "expired"); err != nil {
			return domain.Unauthenticated(), err
		}
		m.emit(ctx, telemetry.EventResolved, sess, domain.Unauthenticated(), "expired")
		return domain.Unauthenticated(), nil
	}
	if !sess.Approved {
		if err := m.purge(ctx, sess, "not_approved"); err != nil {
			return domain.PendingApproval(), err
		}
		m.emit(ctx, telemetry.EventResolved, sess, domain.PendingApproval(), "not_approved")
		return domain.PendingApproval(), nil
	}

	refreshed, err := m.refresh(ctx, sess)
	switch {
	case err == nil:
		v := domain.Authenticated(refreshed.Role)
		m.emit(ctx, telemetry.EventResolved, refreshed, v, "")
		return v, nil
	case errors.Is(err, domain.ErrNotApproved):
		m.emit(ctx, telemetry.EventResolved, sess, domain.PendingApproval(), "approval_withdrawn")
		return domain.PendingApproval(), nil
	default:
		m.emit(ctx, telemetry.EventResolved, sess, domain.Unauthenticated(), reasonFor(err))
		return domain.Unauthenticated(), err
	}
}

// Refresh extends the stored session to now+TTL after the authority re-validates its credential.
// ExpiresAt never moves backwards. A rejected credential or withdrawn approval clears the session.
func (m *Manager) Refresh(ctx context.Context) (sess *domain.Session, err error) {
	ctx, span := m.tracer.Start(ctx, "session.Refresh")
	defer func() { endSpan(span, err) }()

	if err := m.lock.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer m.lock.Release(1)

	cur, _, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, domain.ErrNoSession
	}
	if !cur.IsLive(m.clock.Now()) {
		if err := m.purge(ctx, cur, "expired"); err != nil {
			return nil, err
		}
		return nil, domain.ErrNoSession
	}
	if !cur.Approved {
		if err := m.purge(ctx, cur, "not_approved"); err != nil {
			return nil, err
		}
		return nil, domain.ErrNotApproved
	}
	return m.refresh(ctx, cur)
}

// refresh consults the authority and persists the extended session. Caller holds the lock.
func (m *Manager) refresh(ctx context.Context, cur *domain.Session) (*domain.Session, error) {
	decision, err := m.authority.ValidateRefreshToken(ctx, cur.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialRejected) {
			return nil, m.reject(ctx, cur, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		m.metrics.Refresh(ctx, "network_error")
		if errors.Is(err, domain.ErrNetwork) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
	if decision == nil || !decision.Accepted {
		return nil, m.reject(ctx, cur, domain.ErrCredentialRejected)
	}
	if decision.Role != "" && !decision.Role.Valid() {
		return nil, m.reject(ctx, cur, fmt.Errorf("%w: unknown role %q", domain.ErrCredentialRejected, decision.Role))
	}
	if !decision.Approved {
		m.metrics.Refresh(ctx, "not_approved")
		if err := m.purge(ctx, cur, "approval_withdrawn"); err != nil {
			return nil, err
		}
		return nil, domain.ErrNotApproved
	}

	next := *cur
	next.Approved = true
	if decision.Role != "" {
		next.Role = decision.Role
	}
	if decision.RefreshToken != "" {
		next.RefreshToken = decision.RefreshToken
	}
	next.Extend(m.clock.Now(), m.ttl)
	// The authority may already have rotated the token; the save must not be torn.
	if err := m.store.Save(context.WithoutCancel(ctx), &next); err != nil {
		m.metrics.Refresh(ctx, "storage_error")
		return nil, err
	}
	m.metrics.Refresh(ctx, "ok")
	m.emit(ctx, telemetry.EventRefreshed, &next, domain.Authenticated(next.Role), "")
	return &next, nil
}

func (m *Manager) reject(ctx context.Context, cur *domain.Session, cause error) error {
	m.metrics.Refresh(ctx, "rejected")
	if err := m.purge(ctx, cur, "credential_rejected"); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// Clear removes the stored session (logout or invalidation). Clearing an empty store is not an error.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.lock.Release(1)

	if err := m.store.Delete(ctx); err != nil {
		return err
	}
	m.emit(ctx, telemetry.EventCleared, nil, domain.Unauthenticated(), "logout")
	return nil
}

// Cleanup deletes the stored session if it is no longer live, or unreadable, and returns how many
// records were removed. Live sessions are left untouched.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	if err := m.lock.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer m.lock.Release(1)

	sess, purged, err := m.load(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	if purged {
		removed = 1
	}
	if sess != nil && !sess.IsLive(m.clock.Now()) {
		if err := m.purge(ctx, sess, "expired"); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		m.emit(ctx, telemetry.EventSwept, sess, domain.Unauthenticated(), "")
	}
	return removed, nil
}

// load reads the stored session. A corrupt record is logged, deleted, and reported as absent
// with purged set.
func (m *Manager) load(ctx context.Context) (sess *domain.Session, purged bool, err error) {
	sess, err = m.store.Load(ctx)
	if err == nil {
		return sess, false, nil
	}
	if !errors.Is(err, domain.ErrCorruptSession) {
		return nil, false, err
	}
	log.Printf("session: discarding unreadable record: %v", err)
	if err := m.purge(ctx, nil, "corrupt"); err != nil {
		return nil, false, err
	}
	return nil, true, nil
}

func (m *Manager) purge(ctx context.Context, sess *domain.Session, reason string) error {
	if err := m.store.Delete(ctx); err != nil {
		log.Printf("session: delete %s record: %v", reason, err)
		return err
	}
	m.metrics.Removal(ctx, reason)
	m.emit(ctx, telemetry.EventPurged, sess, domain.Unauthenticated(), reason)
	return nil
}

func (m *Manager) emit(ctx context.Context, eventType string, sess *domain.Session, v domain.Verdict, reason string) {
	if m.emitter == nil {
		return
	}
	ev := &telemetry.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Verdict:   v.String(),
		Reason:    reason,
		CreatedAt: m.clock.Now().UTC(),
	}
	if sess != nil {
		ev.UserID = sess.UserID
		ev.Role = string(sess.Role)
	}
	telemetry.EmitAsync(ctx, m.emitter, ev)
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrCredentialRejected):
		return "credential_rejected"
	case errors.Is(err, domain.ErrNetwork):
		return "network_error"
	case errors.Is(err, domain.ErrStorage):
		return "storage_error"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
