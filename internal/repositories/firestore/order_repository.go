package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/lumenmarket/api/internal/domain"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
	"github.com/lumenmarket/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists placed orders. Orders are append-heavy: lines and
// monetary fields never change after Insert, so Update writes full snapshots
// without merge semantics.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{base: base}, nil
}

// Insert stores a new order document. The ID must be unique.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)
	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update replaces the persisted order state with the provided snapshot.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return errors.New("order repository: order id is required")
	}
	docRef, err := r.base.DocumentRef(ctx, orderID)
	if err != nil {
		return err
	}
	doc := encodeOrderDocument(order)
	if _, err := docRef.Set(ctx, doc); err != nil {
		return pfirestore.WrapError("orders.update", err)
	}
	return nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(orderID, doc.Data, doc.CreateTime, doc.UpdateTime), nil
}

// List returns orders matching the filter ordered by most recent creation.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeCursorToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	owner := strings.TrimSpace(filter.Owner.String())
	statusFilters := normaliseOrderStatuses(filter.Status)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if owner != "" {
			q = q.Where("owner", "==", owner)
		}

		if len(statusFilters) == 1 {
			q = q.Where("status", "==", statusFilters[0])
		} else if len(statusFilters) > 1 {
			// Firestore in clause supports up to 10 values.
			if len(statusFilters) > 10 {
				statusFilters = statusFilters[:10]
			}
			q = q.Where("status", "in", statusFilters)
		}

		if filter.DateRange.From != nil && !filter.DateRange.From.IsZero() {
			q = q.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil && !filter.DateRange.To.IsZero() {
			q = q.Where("createdAt", "<", filter.DateRange.To.UTC())
		}

		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	valueDocs := docs
	nextToken := ""
	if limit > 0 && len(valueDocs) == fetchLimit {
		last := valueDocs[len(valueDocs)-1]
		tokenTime := last.Data.CreatedAt
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken = encodeCursorToken(tokenTime, last.ID)
		valueDocs = valueDocs[:len(valueDocs)-1]
	}

	items := make([]domain.Order, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data, doc.CreateTime, doc.UpdateTime))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

type orderDocument struct {
	OrderNumber     string                 `firestore:"orderNumber"`
	Owner           string                 `firestore:"owner"`
	Lines           []orderLineDocument    `firestore:"lines"`
	ShippingAddress addressDocument        `firestore:"shippingAddress"`
	BillingAddress  *addressDocument       `firestore:"billingAddress,omitempty"`
	PaymentMethod   string                 `firestore:"paymentMethod"`
	PaymentStatus   string                 `firestore:"paymentStatus"`
	Subtotal        int64                  `firestore:"subtotal"`
	ShippingCost    int64                  `firestore:"shippingCost"`
	Tax             int64                  `firestore:"tax"`
	Total           int64                  `firestore:"total"`
	Status          string                 `firestore:"status"`
	StatusHistory   []statusChangeDocument `firestore:"statusHistory"`
	Notes           *string                `firestore:"notes,omitempty"`
	DeliveredAt     *time.Time             `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time             `firestore:"cancelledAt,omitempty"`
	CancelReason    *string                `firestore:"cancelReason,omitempty"`
	RestorePending  []string               `firestore:"restorePending,omitempty"`
	CreatedAt       time.Time              `firestore:"createdAt"`
	UpdatedAt       time.Time              `firestore:"updatedAt"`
}

type orderLineDocument struct {
	ProductRef string `firestore:"productRef"`
	Name       string `firestore:"name"`
	Quantity   int    `firestore:"quantity"`
	UnitPrice  int64  `firestore:"unitPrice"`
	LineTotal  int64  `firestore:"lineTotal"`
}

type statusChangeDocument struct {
	Status string    `firestore:"status"`
	Note   string    `firestore:"note,omitempty"`
	At     time.Time `firestore:"at"`
}

type addressDocument struct {
	Recipient  string  `firestore:"recipient"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	lines := make([]orderLineDocument, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineDocument{
			ProductRef: strings.TrimSpace(line.ProductID),
			Name:       strings.TrimSpace(line.Name),
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			LineTotal:  line.LineTotal,
		})
	}

	history := make([]statusChangeDocument, 0, len(order.StatusHistory))
	for _, change := range order.StatusHistory {
		history = append(history, statusChangeDocument{
			Status: string(change.Status),
			Note:   strings.TrimSpace(change.Note),
			At:     change.At.UTC(),
		})
	}

	doc := orderDocument{
		OrderNumber:     strings.TrimSpace(order.OrderNumber),
		Owner:           strings.TrimSpace(order.Owner.String()),
		Lines:           lines,
		ShippingAddress: encodeAddressDocument(order.ShippingAddress),
		PaymentMethod:   strings.TrimSpace(order.Payment.Method),
		PaymentStatus:   string(order.Payment.Status),
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		Tax:             order.Tax,
		Total:           order.Total,
		Status:          string(order.Status),
		StatusHistory:   history,
		Notes:           normaliseStringPointer(order.Notes),
		DeliveredAt:     normalizeTimePointer(order.DeliveredAt),
		CancelledAt:     normalizeTimePointer(order.CancelledAt),
		CancelReason:    normaliseStringPointer(order.CancelReason),
		RestorePending:  order.RestorePending,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
	if order.BillingAddress != nil {
		billing := encodeAddressDocument(*order.BillingAddress)
		doc.BillingAddress = &billing
	}
	return doc
}

func decodeOrderDocument(id string, doc orderDocument, createdAt, updatedAt time.Time) domain.Order {
	lines := make([]domain.OrderLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID: strings.TrimSpace(line.ProductRef),
			Name:      strings.TrimSpace(line.Name),
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
		})
	}

	history := make([]domain.StatusChange, 0, len(doc.StatusHistory))
	for _, change := range doc.StatusHistory {
		history = append(history, domain.StatusChange{
			Status: domain.OrderStatus(strings.TrimSpace(change.Status)),
			Note:   strings.TrimSpace(change.Note),
			At:     change.At.UTC(),
		})
	}

	order := domain.Order{
		ID:              strings.TrimSpace(id),
		OrderNumber:     strings.TrimSpace(doc.OrderNumber),
		Owner:           domain.ActorRef(strings.TrimSpace(doc.Owner)),
		Lines:           lines,
		ShippingAddress: decodeAddressDocument(doc.ShippingAddress),
		Payment: domain.OrderPayment{
			Method: strings.TrimSpace(doc.PaymentMethod),
			Status: domain.PaymentStatus(strings.TrimSpace(doc.PaymentStatus)),
		},
		Subtotal:       doc.Subtotal,
		ShippingCost:   doc.ShippingCost,
		Tax:            doc.Tax,
		Total:          doc.Total,
		Status:         domain.OrderStatus(strings.TrimSpace(doc.Status)),
		StatusHistory:  history,
		Notes:          normaliseStringPointer(doc.Notes),
		DeliveredAt:    normalizeTimePointer(doc.DeliveredAt),
		CancelledAt:    normalizeTimePointer(doc.CancelledAt),
		CancelReason:   normaliseStringPointer(doc.CancelReason),
		RestorePending: doc.RestorePending,
		CreatedAt:      chooseTime(doc.CreatedAt, createdAt),
		UpdatedAt:      chooseTime(doc.UpdatedAt, updatedAt),
	}
	if doc.BillingAddress != nil {
		billing := decodeAddressDocument(*doc.BillingAddress)
		order.BillingAddress = &billing
	}
	return order
}

func encodeAddressDocument(addr domain.Address) addressDocument {
	return addressDocument{
		Recipient:  strings.TrimSpace(addr.Recipient),
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      normaliseStringPointer(addr.Line2),
		City:       strings.TrimSpace(addr.City),
		State:      normaliseStringPointer(addr.State),
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
		Phone:      normaliseStringPointer(addr.Phone),
	}
}

func decodeAddressDocument(doc addressDocument) domain.Address {
	return domain.Address{
		Recipient:  strings.TrimSpace(doc.Recipient),
		Line1:      strings.TrimSpace(doc.Line1),
		Line2:      normaliseStringPointer(doc.Line2),
		City:       strings.TrimSpace(doc.City),
		State:      normaliseStringPointer(doc.State),
		PostalCode: strings.TrimSpace(doc.PostalCode),
		Country:    strings.TrimSpace(doc.Country),
		Phone:      normaliseStringPointer(doc.Phone),
	}
}

func normaliseStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normaliseOrderStatuses(statuses []domain.OrderStatus) []string {
	if len(statuses) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(statuses))
	seen := make(map[string]struct{})
	for _, status := range statuses {
		trimmed := strings.ToLower(strings.TrimSpace(string(status)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

