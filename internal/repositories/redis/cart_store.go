package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/lumenmarket/api/internal/domain"
)

const cartKeyPrefix = "cart:"

// CartStore keeps cart snapshots in Redis with a sliding TTL. Every Save
// rewrites the full snapshot and restarts the expiry window, so any
// mutation keeps the cart alive. Expired keys simply vanish; Fetch reports
// them as not found and callers treat that as an empty cart.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// CartStoreOption customises the cart store.
type CartStoreOption func(*CartStore)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) CartStoreOption {
	return func(s *CartStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCartStore constructs a Redis-backed cart store. TTL must be positive.
func NewCartStore(client *redis.Client, ttl time.Duration, opts ...CartStoreOption) (*CartStore, error) {
	if client == nil {
		return nil, errors.New("cart store: redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cart store: ttl must be positive, got %s", ttl)
	}
	store := &CartStore{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Fetch loads the cart snapshot for the owner. Missing or expired entries
// surface a not-found repository error.
func (s *CartStore) Fetch(ctx context.Context, owner domain.ActorRef) (domain.Cart, error) {
	if s == nil || s.client == nil {
		return domain.Cart{}, errors.New("cart store not initialised")
	}
	key, err := cartKey(owner)
	if err != nil {
		return domain.Cart{}, err
	}

	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Cart{}, WrapError("carts.fetch", err)
	}

	var doc cartSnapshot
	if err := json.Unmarshal(payload, &doc); err != nil {
		return domain.Cart{}, WrapError("carts.fetch", fmt.Errorf("decode cart %s: %w", owner, err))
	}
	return doc.toDomain(owner), nil
}

// Save stores the full cart snapshot and refreshes its TTL. The returned
// cart carries the new expiry.
func (s *CartStore) Save(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if s == nil || s.client == nil {
		return domain.Cart{}, errors.New("cart store not initialised")
	}
	key, err := cartKey(cart.Owner)
	if err != nil {
		return domain.Cart{}, err
	}

	now := s.now()
	cart.LastUpdated = now
	cart.ExpiresAt = now.Add(s.ttl)

	payload, err := json.Marshal(encodeCartSnapshot(cart))
	if err != nil {
		return domain.Cart{}, fmt.Errorf("cart store: encode cart %s: %w", cart.Owner, err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return domain.Cart{}, WrapError("carts.save", err)
	}
	return cart, nil
}

// Delete removes the cart snapshot. Deleting an absent cart is not an error.
func (s *CartStore) Delete(ctx context.Context, owner domain.ActorRef) error {
	if s == nil || s.client == nil {
		return errors.New("cart store not initialised")
	}
	key, err := cartKey(owner)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return WrapError("carts.delete", err)
	}
	return nil
}

func cartKey(owner domain.ActorRef) (string, error) {
	trimmed := strings.TrimSpace(owner.String())
	if trimmed == "" {
		return "", errors.New("cart store: owner is required")
	}
	return cartKeyPrefix + trimmed, nil
}

type cartSnapshot struct {
	Lines       []cartLineSnapshot `json:"lines"`
	TotalItems  int                `json:"totalItems"`
	TotalAmount int64              `json:"totalAmount"`
	LastUpdated time.Time          `json:"lastUpdated"`
	ExpiresAt   time.Time          `json:"expiresAt"`
}

type cartLineSnapshot struct {
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	ImageRef  string    `json:"imageRef,omitempty"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unitPrice"`
	AddedAt   time.Time `json:"addedAt"`
}

func encodeCartSnapshot(cart domain.Cart) cartSnapshot {
	lines := make([]cartLineSnapshot, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		lines = append(lines, cartLineSnapshot{
			ProductID: strings.TrimSpace(line.ProductID),
			Name:      strings.TrimSpace(line.Name),
			ImageRef:  strings.TrimSpace(line.ImageRef),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			AddedAt:   line.AddedAt.UTC(),
		})
	}
	return cartSnapshot{
		Lines:       lines,
		TotalItems:  cart.TotalItems,
		TotalAmount: cart.TotalAmount,
		LastUpdated: cart.LastUpdated.UTC(),
		ExpiresAt:   cart.ExpiresAt.UTC(),
	}
}

func (doc cartSnapshot) toDomain(owner domain.ActorRef) domain.Cart {
	lines := make([]domain.CartLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, domain.CartLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			ImageRef:  line.ImageRef,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			AddedAt:   line.AddedAt,
		})
	}
	return domain.Cart{
		Owner:       owner,
		Lines:       lines,
		TotalItems:  doc.TotalItems,
		TotalAmount: doc.TotalAmount,
		LastUpdated: doc.LastUpdated,
		ExpiresAt:   doc.ExpiresAt,
	}
}
