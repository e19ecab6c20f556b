package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"storefront/sessioncore/internal/authority/client"
	"storefront/sessioncore/internal/authority/domain"
	"storefront/sessioncore/internal/authority/handler"
	authorityservice "storefront/sessioncore/internal/authority/service"
	"storefront/sessioncore/internal/security"
	sessiondomain "storefront/sessioncore/internal/session/domain"
	"storefront/sessioncore/internal/session/repository"
	sessionservice "storefront/sessioncore/internal/session/service"
)

type memAccounts struct {
	mu sync.Mutex
	m  map[string]domain.Account
}

func (r *memAccounts) GetByUserID(ctx context.Context, userID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.m[userID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (r *memAccounts) Upsert(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[a.UserID] = *a
	return nil
}

func (r *memAccounts) UpdateRefreshToken(ctx context.Context, userID, prevJTI, jti, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.m[userID]
	if !ok || a.RevokedAt != nil || a.RefreshJTI != prevJTI {
		return domain.ErrStaleRotation
	}
	a.RefreshJTI, a.RefreshTokenHash = jti, hash
	r.m[userID] = a
	return nil
}

func (r *memAccounts) RevokeRefresh(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.m[userID]
	now := time.Now()
	a.RevokedAt = &now
	r.m[userID] = a
	return nil
}

type harness struct {
	accounts *authorityservice.AccountService
	store    *repository.MemoryStore
	manager  *sessionservice.Manager
	clock    *clockwork.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	accounts := authorityservice.NewAccountService(&memAccounts{m: map[string]domain.Account{}}, tokens)
	srv := httptest.NewServer(handler.NewServer(accounts, nil).Router())
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	store := repository.NewMemoryStore()
	clock := clockwork.NewFakeClockAt(time.Now())
	mgr := sessionservice.NewManager(store, c, time.Hour, sessionservice.WithClock(clock))
	return &harness{accounts: accounts, store: store, manager: mgr, clock: clock}
}

func (h *harness) seed(t *testing.T, userID string, role sessiondomain.Role, approved bool) string {
	t.Helper()
	ctx := context.Background()
	if _, err := h.accounts.Provision(ctx, userID, role, approved); err != nil {
		t.Fatal(err)
	}
	token, _, err := h.accounts.Issue(ctx, userID, "device-1")
	if err != nil {
		t.Fatal(err)
	}
	sess, err := sessiondomain.New(userID, role, approved, token, h.clock.Now(), 10*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}
	return token
}

func TestEndToEnd_ResolveRotatesAndExtends(t *testing.T) {
	h := newHarness(t)
	first := h.seed(t, "u1", sessiondomain.RoleStoreOwner, true)
	ctx := context.Background()

	v, err := h.manager.Resolve(ctx)
	if err != nil || v != sessiondomain.Authenticated(sessiondomain.RoleStoreOwner) {
		t.Fatalf("Resolve = %v, %v", v, err)
	}
	sess, _ := h.store.Load(ctx)
	if sess.RefreshToken == first {
		t.Error("stored refresh token should be rotated")
	}
	if want := h.clock.Now().Add(time.Hour); !sess.ExpiresAt.Equal(want.UTC()) {
		t.Errorf("ExpiresAt = %v, want %v", sess.ExpiresAt, want)
	}

	// A second launch presents the rotated token and succeeds again.
	if v, err := h.manager.Resolve(ctx); err != nil || v.State != sessiondomain.StateAuthenticated {
		t.Fatalf("second Resolve = %v, %v", v, err)
	}
}

func TestEndToEnd_RevokedAccountClearsDevice(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", sessiondomain.RoleMerchant, true)
	ctx := context.Background()
	if err := h.accounts.Revoke(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	v, err := h.manager.Resolve(ctx)
	if !errors.Is(err, sessiondomain.ErrCredentialRejected) {
		t.Errorf("err = %v, want ErrCredentialRejected", err)
	}
	if v != sessiondomain.Unauthenticated() {
		t.Errorf("verdict = %v, want unauthenticated", v)
	}
	if sess, _ := h.store.Load(ctx); sess != nil {
		t.Error("device session should be cleared")
	}
}

func TestEndToEnd_ApprovalWithdrawn(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "u1", sessiondomain.RoleAdmin, true)
	ctx := context.Background()
	if _, err := h.accounts.Provision(ctx, "u1", sessiondomain.RoleAdmin, false); err != nil {
		t.Fatal(err)
	}

	v, err := h.manager.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != sessiondomain.PendingApproval() {
		t.Errorf("verdict = %v, want pending_approval", v)
	}
	if sess, _ := h.store.Load(ctx); sess != nil {
		t.Error("device session should be cleared")
	}
}
