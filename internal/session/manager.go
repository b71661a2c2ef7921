package session

import (
	"context"
	"errors"
	"time"

	"github.com/Sylius/FrontWing/internal/cache"
	"github.com/Sylius/FrontWing/internal/domain"
	"github.com/Sylius/FrontWing/internal/gateway"
	"github.com/Sylius/FrontWing/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// OrderAPI is the slice of the commerce gateway the session drives.
type OrderAPI interface {
	CreateCart(ctx context.Context) (string, error)
	FetchOrder(ctx context.Context, token string) (*domain.Order, error)
	AddItem(ctx context.Context, token, variantCode string, quantity int) (*domain.Order, error)
	UpdateItem(ctx context.Context, token string, itemID int64, quantity int) (*domain.Order, error)
	RemoveItem(ctx context.Context, token string, itemID int64) error
	AttachCustomer(ctx context.Context, token string, customer *domain.Customer) error
	SetBillingEmail(ctx context.Context, token, email string) error
	SetAddresses(ctx context.Context, token string, update gateway.AddressUpdate) (*domain.Order, error)
	SelectShippingMethod(ctx context.Context, token string, shipmentID int64, code string) error
	SelectPaymentMethod(ctx context.Context, token string, paymentID int64, code string) error
	CompleteOrder(ctx context.Context, token, notes string) (*domain.Order, error)
}

// TokenStore is where the cart token lives between requests.
type TokenStore interface {
	Read() (string, bool)
	Write(token string)
	Clear()
}

// SyncGuard remembers identity syncs across requests.
type SyncGuard interface {
	Acquire(ctx context.Context, customerIRI, token string) (bool, error)
}

// Manager owns the collaborators shared by all sessions. It is safe for
// concurrent use; sessions are not.
type Manager struct {
	api    OrderAPI
	orders cache.OrderCache
	guard  SyncGuard
	sfg    singleflight.Group
	logger *zap.Logger

	fetchTimeout time.Duration
}

type Option func(*Manager)

func WithCache(c cache.OrderCache) Option {
	return func(m *Manager) { m.orders = c }
}

func WithSyncGuard(g SyncGuard) Option {
	return func(m *Manager) { m.guard = g }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithFetchTimeout bounds a shared order fetch, which outlives its callers.
func WithFetchTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

func NewManager(api OrderAPI, opts ...Option) *Manager {
	m := &Manager{api: api, logger: zap.NewNop(), fetchTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open binds a session to the token store of one request.
func (m *Manager) Open(tokens TokenStore) *Session {
	return &Session{
		m:      m,
		tokens: tokens,
		state:  domain.SessionNoToken,
		synced: map[string]bool{},
	}
}

func (m *Manager) log(ctx context.Context) *zap.Logger {
	return logger.With(ctx, m.logger)
}

// fetch loads the order for token. Concurrent fetches of the same token share
// one backend call that runs detached from any single caller, so a caller
// that goes away does not fail the others. Each caller gets its own copy.
// With fresh set the snapshot cache is skipped.
func (m *Manager) fetch(ctx context.Context, token string, fresh bool) (*domain.Order, error) {
	ch := m.sfg.DoChan(flightKey(token, fresh), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.fetchTimeout)
		defer cancel()
		return m.load(fctx, token, fresh)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Order).Clone(), nil
	}
}

func (m *Manager) load(ctx context.Context, token string, fresh bool) (*domain.Order, error) {
	if m.orders == nil {
		return m.api.FetchOrder(ctx, token)
	}

	if !fresh {
		order, err := m.orders.Get(ctx, token)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			m.log(ctx).Warn("order cache get failed", zap.Error(err))
		}
	}

	// the generation is read before the backend so a snapshot fetched across
	// an invalidation is never written back
	gen, genErr := m.orders.Generation(ctx, token)
	if genErr != nil {
		m.log(ctx).Warn("order cache generation unavailable, not caching", zap.Error(genErr))
	}

	order, err := m.api.FetchOrder(ctx, token)
	if err != nil {
		return nil, err
	}
	if genErr != nil || order.IsCompleted() {
		return order, nil
	}
	switch err := m.orders.Set(ctx, token, order, gen); {
	case errors.Is(err, cache.ErrStaleSnapshot):
		m.log(ctx).Debug("discarded snapshot fetched before invalidation")
	case err != nil:
		m.log(ctx).Warn("order cache set failed", zap.Error(err))
	}
	return order, nil
}

// invalidate drops every shared copy of the snapshot for token.
func (m *Manager) invalidate(ctx context.Context, token string) {
	if token == "" {
		return
	}
	m.sfg.Forget(flightKey(token, false))
	m.sfg.Forget(flightKey(token, true))
	if m.orders == nil {
		return
	}
	if err := m.orders.Delete(context.WithoutCancel(ctx), token); err != nil {
		m.log(ctx).Warn("order cache invalidate failed", zap.Error(err))
	}
}

func flightKey(token string, fresh bool) string {
	if fresh {
		return token + ":fresh"
	}
	return token
}

func (m *Manager) acquireSync(ctx context.Context, customerIRI, token string) bool {
	if m.guard == nil {
		return true
	}
	ok, err := m.guard.Acquire(ctx, customerIRI, token)
	if err != nil {
		m.log(ctx).Warn("identity sync guard unavailable, skipping sync", zap.Error(err))
		return false
	}
	return ok
}

var errNoFreshToken = errors.New("backend reissued a retired cart token")
