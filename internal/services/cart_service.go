package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/repositories"
)

var (
	errCartStoreRequired   = errors.New("cart service: cart store is required")
	errCartCatalogRequired = errors.New("cart service: product repository is required")
	errCartStockRequired   = errors.New("cart service: stock repository is required")
)

const maxLineQuantity = 99

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart service cannot fulfil the request due to backend issues.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartLineNotFound indicates the referenced line is not in the cart.
var ErrCartLineNotFound = errors.New("cart service: line not found")

// ErrQuantityInvalid indicates a non-positive or out-of-range quantity.
var ErrQuantityInvalid = errors.New("cart service: invalid quantity")

// ErrProductUnavailable indicates the product does not exist or is inactive.
var ErrProductUnavailable = errors.New("cart service: product unavailable")

// ErrStockInsufficient indicates available stock cannot cover the requested quantity.
var ErrStockInsufficient = errors.New("insufficient stock")

// Merge outcome reasons reported per source line.
const (
	MergeReasonAdded        = "added"
	MergeReasonCombined     = "combined"
	MergeReasonUnavailable  = "product unavailable"
	MergeReasonOutOfStock   = "insufficient stock"
	MergeReasonClampedStock = "quantity clamped to available stock"
)

// CartServiceDeps wires the store and catalog dependencies for cart operations.
type CartServiceDeps struct {
	Carts    repositories.CartStore
	Products repositories.ProductRepository
	Stock    repositories.StockRepository
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
}

type cartService struct {
	carts    repositories.CartStore
	products repositories.ProductRepository
	stock    repositories.StockRepository
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errCartStoreRequired
	}
	if deps.Products == nil {
		return nil, errCartCatalogRequired
	}
	if deps.Stock == nil {
		return nil, errCartStockRequired
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		stock:    deps.Stock,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
	}, nil
}

// GetCart loads the actor's cart. When the cart is missing or expired an
// empty one is persisted with a fresh expiry window, so the returned
// snapshot always carries a live TTL.
func (s *cartService) GetCart(ctx context.Context, actor ActorRef) (Cart, error) {
	if s == nil || s.carts == nil {
		return Cart{}, ErrCartUnavailable
	}
	actor, err := normaliseActor(actor)
	if err != nil {
		return Cart{}, err
	}
	cart, err := s.carts.Fetch(ctx, actor)
	if err != nil {
		if isRepoNotFound(err) {
			return s.saveCart(ctx, domain.Cart{Owner: actor})
		}
		return Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

// AddLine adds quantity of a product to the cart, merging into an existing
// line when present. The unit price is frozen the first time the product
// enters the cart.
func (s *cartService) AddLine(ctx context.Context, cmd AddCartLineCommand) (Cart, error) {
	if s == nil || s.carts == nil {
		return Cart{}, ErrCartUnavailable
	}
	actor, err := normaliseActor(cmd.Actor)
	if err != nil {
		return Cart{}, err
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity <= 0 || cmd.Quantity > maxLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrQuantityInvalid, maxLineQuantity)
	}

	product, err := s.sellableProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}

	cart, err := s.loadCart(ctx, actor)
	if err != nil {
		return Cart{}, err
	}

	now := s.now()
	requested := cmd.Quantity
	if idx := cart.LineIndex(productID); idx >= 0 {
		requested = cart.Lines[idx].Quantity + cmd.Quantity
	}
	if requested > maxLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrQuantityInvalid, maxLineQuantity)
	}
	if err := s.ensureAvailable(ctx, productID, requested); err != nil {
		return Cart{}, err
	}

	if idx := cart.LineIndex(productID); idx >= 0 {
		cart.Lines[idx].Quantity = requested
	} else {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			ImageRef:  product.ImageRef,
			Quantity:  cmd.Quantity,
			UnitPrice: product.FinalPrice(),
			AddedAt:   now,
		})
	}

	return s.saveCart(ctx, cart)
}

// UpdateLine sets the absolute quantity of an existing line. A quantity of
// zero or less removes the line instead, and like RemoveLine that removal
// succeeds when the line is already absent.
func (s *cartService) UpdateLine(ctx context.Context, cmd UpdateCartLineCommand) (Cart, error) {
	if s == nil || s.carts == nil {
		return Cart{}, ErrCartUnavailable
	}
	if cmd.Quantity <= 0 {
		return s.RemoveLine(ctx, RemoveCartLineCommand{Actor: cmd.Actor, ProductID: cmd.ProductID})
	}
	actor, err := normaliseActor(cmd.Actor)
	if err != nil {
		return Cart{}, err
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if cmd.Quantity > maxLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be between 1 and %d", ErrQuantityInvalid, maxLineQuantity)
	}

	cart, err := s.loadCart(ctx, actor)
	if err != nil {
		return Cart{}, err
	}
	idx := cart.LineIndex(productID)
	if idx < 0 {
		return Cart{}, ErrCartLineNotFound
	}
	if err := s.ensureAvailable(ctx, productID, cmd.Quantity); err != nil {
		return Cart{}, err
	}

	cart.Lines[idx].Quantity = cmd.Quantity
	return s.saveCart(ctx, cart)
}

// RemoveLine drops a line from the cart. Removing an absent line succeeds
// and leaves the cart untouched.
func (s *cartService) RemoveLine(ctx context.Context, cmd RemoveCartLineCommand) (Cart, error) {
	if s == nil || s.carts == nil {
		return Cart{}, ErrCartUnavailable
	}
	actor, err := normaliseActor(cmd.Actor)
	if err != nil {
		return Cart{}, err
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}

	cart, err := s.loadCart(ctx, actor)
	if err != nil {
		return Cart{}, err
	}
	idx := cart.LineIndex(productID)
	if idx < 0 {
		return cart, nil
	}

	cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	return s.saveCart(ctx, cart)
}

// ClearCart discards the actor's cart. Clearing an absent cart succeeds.
func (s *cartService) ClearCart(ctx context.Context, actor ActorRef) error {
	if s == nil || s.carts == nil {
		return ErrCartUnavailable
	}
	actor, err := normaliseActor(actor)
	if err != nil {
		return err
	}
	if err := s.carts.Delete(ctx, actor); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

// MergeCarts folds the source cart into the target cart, typically after an
// anonymous session signs in. Each source line is re-validated against the
// catalog and stock; accepted lines combine quantities with existing target
// lines, rejected lines are reported per line and never block the merge.
// The source cart is deleted afterwards.
func (s *cartService) MergeCarts(ctx context.Context, cmd MergeCartsCommand) (MergeResult, error) {
	if s == nil || s.carts == nil {
		return MergeResult{}, ErrCartUnavailable
	}
	source, err := normaliseActor(cmd.Source)
	if err != nil {
		return MergeResult{}, err
	}
	target, err := normaliseActor(cmd.Target)
	if err != nil {
		return MergeResult{}, err
	}
	if source == target {
		return MergeResult{}, fmt.Errorf("%w: source and target must differ", ErrCartInvalidInput)
	}

	sourceCart, err := s.loadCart(ctx, source)
	if err != nil {
		return MergeResult{}, err
	}
	targetCart, err := s.loadCart(ctx, target)
	if err != nil {
		return MergeResult{}, err
	}

	outcomes := make([]MergeLineOutcome, 0, len(sourceCart.Lines))
	now := s.now()
	changed := false

	for _, line := range sourceCart.Lines {
		outcome := MergeLineOutcome{ProductID: line.ProductID, Quantity: line.Quantity}

		if _, err := s.sellableProduct(ctx, line.ProductID); err != nil {
			if errors.Is(err, ErrProductUnavailable) {
				outcome.Reason = MergeReasonUnavailable
				outcomes = append(outcomes, outcome)
				continue
			}
			return MergeResult{}, err
		}

		available, err := s.availableQuantity(ctx, line.ProductID)
		if err != nil {
			return MergeResult{}, err
		}

		existing := 0
		if idx := targetCart.LineIndex(line.ProductID); idx >= 0 {
			existing = targetCart.Lines[idx].Quantity
		}

		combined := existing + line.Quantity
		if combined > maxLineQuantity {
			combined = maxLineQuantity
		}
		if combined > available {
			combined = available
		}
		if combined <= existing {
			outcome.Reason = MergeReasonOutOfStock
			outcomes = append(outcomes, outcome)
			continue
		}

		accepted := combined - existing
		outcome.Merged = true
		outcome.Quantity = accepted
		if accepted < line.Quantity {
			outcome.Reason = MergeReasonClampedStock
		} else if existing > 0 {
			outcome.Reason = MergeReasonCombined
		} else {
			outcome.Reason = MergeReasonAdded
		}

		if idx := targetCart.LineIndex(line.ProductID); idx >= 0 {
			// The target's earlier frozen price wins for combined lines.
			targetCart.Lines[idx].Quantity = combined
		} else {
			merged := line
			merged.Quantity = combined
			merged.AddedAt = now
			targetCart.Lines = append(targetCart.Lines, merged)
		}
		changed = true
		outcomes = append(outcomes, outcome)
	}

	result := MergeResult{Cart: targetCart, Lines: outcomes}
	if changed {
		saved, err := s.saveCart(ctx, targetCart)
		if err != nil {
			return MergeResult{}, err
		}
		result.Cart = saved
	}

	if err := s.carts.Delete(ctx, source); err != nil {
		s.logger(ctx, "cart merge: source delete failed", map[string]any{
			"source": source.String(),
			"error":  err.Error(),
		})
	}
	return result, nil
}

func (s *cartService) loadCart(ctx context.Context, actor ActorRef) (Cart, error) {
	cart, err := s.carts.Fetch(ctx, actor)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Cart{Owner: actor}, nil
		}
		return Cart{}, s.translateRepoError(err)
	}
	return cart, nil
}

func (s *cartService) saveCart(ctx context.Context, cart Cart) (Cart, error) {
	cart = domain.RecomputeTotals(cart)
	saved, err := s.carts.Save(ctx, cart)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return saved, nil
}

// sellableProduct loads the product and rejects missing or inactive ones.
func (s *cartService) sellableProduct(ctx context.Context, productID string) (Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
		}
		return Product{}, s.translateRepoError(err)
	}
	if !product.IsActive {
		return Product{}, fmt.Errorf("%w: %s", ErrProductUnavailable, productID)
	}
	return product, nil
}

// availableQuantity reads the ledger; products without a ledger entry have
// zero availability.
func (s *cartService) availableQuantity(ctx context.Context, productID string) (int, error) {
	entry, err := s.stock.Get(ctx, productID)
	if err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) && stockErr.Code == repositories.StockErrorNotFound {
			return 0, nil
		}
		if isRepoNotFound(err) {
			return 0, nil
		}
		return 0, s.translateRepoError(err)
	}
	return entry.Quantity, nil
}

func (s *cartService) ensureAvailable(ctx context.Context, productID string, quantity int) error {
	available, err := s.availableQuantity(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > available {
		return fmt.Errorf("%w: %s has %d available", ErrStockInsufficient, productID, available)
	}
	return nil
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrCartLineNotFound
		default:
			return ErrCartUnavailable
		}
	}
	return ErrCartUnavailable
}

func normaliseActor(actor ActorRef) (ActorRef, error) {
	trimmed := strings.TrimSpace(actor.String())
	if trimmed == "" {
		return "", fmt.Errorf("%w: actor is required", ErrCartInvalidInput)
	}
	return ActorRef(trimmed), nil
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
