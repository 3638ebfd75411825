package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/lumenmarket/api/internal/domain"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
	"github.com/lumenmarket/api/internal/repositories"
)

const stockCollection = "stock"

// StockRepository persists the authoritative per-product quantity. All
// mutations run inside Firestore transactions so concurrent decrements for
// the same product are serialized by the backend.
type StockRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[stockDocument]
}

type stockDocument struct {
	ProductRef string    `firestore:"productRef"`
	Quantity   int       `firestore:"quantity"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func (d stockDocument) toDomain(productID string) domain.StockEntry {
	return domain.StockEntry{
		ProductID: productID,
		Quantity:  d.Quantity,
		UpdatedAt: d.UpdatedAt,
	}
}

// NewStockRepository constructs a Firestore-backed stock ledger.
func NewStockRepository(provider *pfirestore.Provider) (*StockRepository, error) {
	if provider == nil {
		return nil, errors.New("stock repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[stockDocument](provider, stockCollection, nil, nil)
	return &StockRepository{provider: provider, base: base}, nil
}

// Get returns the stock entry for the product. Missing records surface a
// StockError with the not-found code.
func (r *StockRepository) Get(ctx context.Context, productID string) (domain.StockEntry, error) {
	if r == nil || r.base == nil {
		return domain.StockEntry{}, errors.New("stock repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorInvalidInput, "stock get: product id is required", nil)
	}

	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorNotFound, fmt.Sprintf("stock %s not found", productID), err)
		}
		return domain.StockEntry{}, err
	}
	return doc.Data.toDomain(productID), nil
}

// Decrement atomically subtracts amount from the product's quantity. The
// check and the write happen in one transaction; a result below zero fails
// with the insufficient-stock code and leaves the record unchanged.
func (r *StockRepository) Decrement(ctx context.Context, productID string, amount int) (domain.StockEntry, error) {
	return r.adjust(ctx, "stock.decrement", productID, -amount)
}

// Increment atomically adds amount to the product's quantity, creating the
// record when absent. Used for cancellation restores; no upper bound is
// enforced.
func (r *StockRepository) Increment(ctx context.Context, productID string, amount int) (domain.StockEntry, error) {
	return r.adjust(ctx, "stock.increment", productID, amount)
}

// SetQuantity replaces the product's quantity with an absolute value,
// creating the record when absent. Admin seeding path.
func (r *StockRepository) SetQuantity(ctx context.Context, productID string, quantity int) (domain.StockEntry, error) {
	if r == nil || r.provider == nil {
		return domain.StockEntry{}, errors.New("stock repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorInvalidInput, "stock set: product id is required", nil)
	}
	if quantity < 0 {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorInvalidInput, fmt.Sprintf("stock set: quantity for %s must be >= 0", productID), nil)
	}

	var result domain.StockEntry
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		doc := stockDocument{
			ProductRef: productID,
			Quantity:   quantity,
			UpdatedAt:  time.Now().UTC(),
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = doc.toDomain(productID)
		return nil
	})
	if err != nil {
		return domain.StockEntry{}, wrapStockError("stock.set", err)
	}
	return result, nil
}

func (r *StockRepository) adjust(ctx context.Context, op, productID string, delta int) (domain.StockEntry, error) {
	if r == nil || r.provider == nil {
		return domain.StockEntry{}, errors.New("stock repository not initialised")
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorInvalidInput, op+": product id is required", nil)
	}
	if delta == 0 {
		return domain.StockEntry{}, repositories.NewStockError(repositories.StockErrorInvalidInput, op+": amount must be > 0", nil)
	}

	var result domain.StockEntry
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}

		var doc stockDocument
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode stock %s: %w", productID, err)
			}
		case status.Code(err) == codes.NotFound:
			if delta < 0 {
				return repositories.NewStockError(repositories.StockErrorNotFound, fmt.Sprintf("stock %s not found", productID), err)
			}
			doc = stockDocument{ProductRef: productID}
		default:
			return err
		}

		next := doc.Quantity + delta
		if next < 0 {
			return repositories.NewStockError(repositories.StockErrorInsufficient, fmt.Sprintf("insufficient stock for %s", productID), nil)
		}

		doc.Quantity = next
		doc.UpdatedAt = time.Now().UTC()
		if doc.ProductRef == "" {
			doc.ProductRef = productID
		}
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		result = doc.toDomain(productID)
		return nil
	})
	if err != nil {
		return domain.StockEntry{}, wrapStockError(op, err)
	}
	return result, nil
}

func wrapStockError(op string, err error) error {
	if err == nil {
		return nil
	}
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		if stockErr.Op == "" {
			stockErr.Op = op
		}
		return stockErr
	}
	return pfirestore.WrapError(op, err)
}
