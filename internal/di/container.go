package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/api/iterator"

	"github.com/lumenmarket/api/internal/domain"
	"github.com/lumenmarket/api/internal/platform/config"
	pfirestore "github.com/lumenmarket/api/internal/platform/firestore"
	"github.com/lumenmarket/api/internal/repositories"
	firestorerepo "github.com/lumenmarket/api/internal/repositories/firestore"
	redisrepo "github.com/lumenmarket/api/internal/repositories/redis"
	"github.com/lumenmarket/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Cart    services.CartService
	Stock   services.StockService
	Orders  services.OrderService
	Catalog services.CatalogService
	System  services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// ContainerDeps carries the externally constructed clients the container
// composes. The caller owns the client lifecycles not covered by Close.
type ContainerDeps struct {
	Firestore *pfirestore.Provider
	Redis     *goredis.Client
	Events    services.EventPublisher
	Build     services.BuildInfo
	Clock     func() time.Time
	IDGen     func() string
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewContainer assembles the repository registry and the service layer.
func NewContainer(ctx context.Context, cfg config.Config, deps ContainerDeps) (*Container, error) {
	reg, err := newRegistry(cfg, deps)
	if err != nil {
		return nil, err
	}

	svc, err := buildServices(cfg, reg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

type registry struct {
	provider *pfirestore.Provider
	redis    *goredis.Client

	carts    repositories.CartStore
	stock    repositories.StockRepository
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	counters repositories.CounterRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*registry)(nil)

func newRegistry(cfg config.Config, deps ContainerDeps) (*registry, error) {
	if deps.Firestore == nil {
		return nil, errors.New("di: firestore provider is required")
	}
	if deps.Redis == nil {
		return nil, errors.New("di: redis client is required")
	}

	stockRepo, err := firestorerepo.NewStockRepository(deps.Firestore)
	if err != nil {
		return nil, fmt.Errorf("build stock repository: %w", err)
	}
	orderRepo, err := firestorerepo.NewOrderRepository(deps.Firestore)
	if err != nil {
		return nil, fmt.Errorf("build order repository: %w", err)
	}
	productRepo, err := firestorerepo.NewProductRepository(deps.Firestore)
	if err != nil {
		return nil, fmt.Errorf("build product repository: %w", err)
	}
	counterRepo, err := firestorerepo.NewCounterRepository(deps.Firestore)
	if err != nil {
		return nil, fmt.Errorf("build counter repository: %w", err)
	}

	var cartOpts []redisrepo.CartStoreOption
	if deps.Clock != nil {
		cartOpts = append(cartOpts, redisrepo.WithClock(deps.Clock))
	}
	cartStore, err := redisrepo.NewCartStore(deps.Redis, cfg.Cart.TTL, cartOpts...)
	if err != nil {
		return nil, fmt.Errorf("build cart store: %w", err)
	}

	healthRepo, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				client, err := deps.Firestore.Client(ctx)
				if err != nil {
					return err
				}
				iter := client.Collections(ctx)
				if _, err := iter.Next(); err != nil && err != iterator.Done {
					return err
				}
				return nil
			},
		},
		{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return deps.Redis.Ping(ctx).Err()
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}

	return &registry{
		provider: deps.Firestore,
		redis:    deps.Redis,
		carts:    cartStore,
		stock:    stockRepo,
		orders:   orderRepo,
		products: productRepo,
		counters: counterRepo,
		health:   healthRepo,
	}, nil
}

func (r *registry) Close(ctx context.Context) error {
	var errs []error
	if r.redis != nil {
		if err := r.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if r.provider != nil {
		if err := r.provider.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close firestore: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *registry) Carts() repositories.CartStore            { return r.carts }
func (r *registry) Stock() repositories.StockRepository      { return r.stock }
func (r *registry) Orders() repositories.OrderRepository     { return r.orders }
func (r *registry) Products() repositories.ProductRepository { return r.products }
func (r *registry) Counters() repositories.CounterRepository { return r.counters }
func (r *registry) Health() repositories.HealthRepository    { return r.health }

func buildServices(cfg config.Config, reg repositories.Registry, deps ContainerDeps) (Services, error) {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Stock:    reg.Stock(),
		Clock:    clock,
		Logger:   deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}

	stockSvc, err := services.NewStockService(services.StockServiceDeps{
		Stock:  reg.Stock(),
		Events: deps.Events,
		Clock:  clock,
		Logger: deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build stock service: %w", err)
	}

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:   reg.Orders(),
		Carts:    reg.Carts(),
		Products: reg.Products(),
		Stock:    reg.Stock(),
		Counters: reg.Counters(),
		Events:   deps.Events,
		Pricing: domain.CheckoutPricing{
			FreeShippingThreshold: cfg.Checkout.FreeShippingThreshold,
			FlatShippingFee:       cfg.Checkout.FlatShippingFee,
			TaxRateBasisPoints:    cfg.Checkout.TaxRateBasisPoints,
		},
		NumberPrefix: cfg.Checkout.OrderNumberPrefix,
		Clock:        clock,
		IDGenerator:  deps.IDGen,
		Logger:       deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products: reg.Products(),
		Stock:    reg.Stock(),
		Clock:    clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            clock,
		Build:            deps.Build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}

	return Services{
		Cart:    cartSvc,
		Stock:   stockSvc,
		Orders:  orderSvc,
		Catalog: catalogSvc,
		System:  systemSvc,
	}, nil
}
