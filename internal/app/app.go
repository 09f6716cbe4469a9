// Package app wires storage, services and the HTTP server from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/catalogclient"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/events"
	httpapi "storefront/internal/http"
	"storefront/internal/migrations"
	"storefront/internal/repository"
	"storefront/internal/service"
)

// DefaultShippingMethods засеваются в in-memory хранилище; в Postgres те же
// строки создаёт первая миграция
var DefaultShippingMethods = []domain.ShippingMethod{
	{ID: "standard", Name: "Standard delivery", Cost: decimal.NewFromInt(5)},
	{ID: "express", Name: "Express delivery", Cost: decimal.NewFromInt(15)},
}

type App struct {
	Server *httpapi.Server
	// Relay publishes order events recorded in the outbox; the caller runs it.
	Relay *events.OutboxRelay

	log     *zap.Logger
	closers []func() error
	checks  []func(ctx context.Context) error
}

type stores struct {
	products repository.ProductRepository
	shipping repository.ShippingRepository
	orders   repository.OrderRepository
	outbox   repository.OutboxRepository
	tx       repository.TxManager
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{log: log}

	st, err := a.openStores(ctx, cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	carts := a.openCartStore(cfg)
	a.Relay = events.NewOutboxRelay(st.outbox, a.openPublisher(cfg), cfg.Kafka.RelayInterval, log.Named("outbox"))

	products := service.NewProductService(st.products)
	var resolver service.VariantPriceResolver = products
	if cfg.Catalog.URL != "" {
		resolver = catalogclient.New(cfg.Catalog.URL, cfg.Catalog.Timeout, log.Named("catalog"))
		log.Info("variant prices resolved remotely", zap.String("url", cfg.Catalog.URL))
	}
	pricing := service.NewPricingService(resolver, log.Named("pricing"))
	cartSvc := service.NewCartService(carts, st.products, pricing, events.NewCartHub(), log.Named("cart"))
	orders := service.NewOrderService(st.products, st.shipping, st.orders, st.outbox, st.tx, cartSvc, pricing, log.Named("orders"))

	a.Server = httpapi.NewServer(httpapi.Services{
		Products: products,
		Pricing:  pricing,
		Carts:    cartSvc,
		Orders:   orders,
		Shipping: service.NewShippingService(st.shipping),
	}, httpapi.Options{
		JWTSecret:   cfg.Auth.JWTSecret,
		AdminAPIKey: cfg.Auth.AdminAPIKey,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      log.Named("http"),
		Health:      a.Health,
	})
	return a, nil
}

func (a *App) openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.Store.Backend == config.BackendPostgres {
		db, err := repository.OpenPostgres(cfg.Database.URL)
		if err != nil {
			return stores{}, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return stores{}, err
		}
		a.closers = append(a.closers, sqlDB.Close)
		a.checks = append(a.checks, sqlDB.PingContext)

		if cfg.Database.MigrateOnStart {
			if err := migrations.Up(sqlDB); err != nil {
				return stores{}, fmt.Errorf("migrate: %w", err)
			}
		}
		a.log.Info("using postgres store")
		gs := repository.NewGormStore(db)
		return stores{
			products: gs,
			shipping: gs,
			orders:   repository.NewGormOrders(db),
			outbox:   repository.NewGormOutbox(db),
			tx:       repository.NewGormTx(db),
		}, nil
	}

	mem := repository.NewMemoryStore()
	for _, m := range DefaultShippingMethods {
		if err := mem.CreateShippingMethod(ctx, &m); err != nil {
			return stores{}, err
		}
	}
	a.log.Info("using in-memory store")
	return stores{
		products: mem,
		shipping: mem,
		orders:   repository.NewMemoryOrders(mem),
		outbox:   repository.NewMemoryOutbox(mem),
		tx:       repository.NewMemoryTx(mem),
	}, nil
}

func (a *App) openCartStore(cfg *config.Config) repository.CartStore {
	if cfg.Redis.Addr == "" {
		return repository.NewMemoryCartStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)
	a.checks = append(a.checks, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	a.log.Info("using redis cart store", zap.String("addr", cfg.Redis.Addr))
	return repository.NewRedisCartStore(client, cfg.Cart.TTL)
}

// openPublisher without brokers the relay still drains the outbox, events are dropped
func (a *App) openPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NopPublisher{}
	}
	p := events.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	a.closers = append(a.closers, p.Close)
	a.log.Info("publishing order events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	return p
}

// Health проверяет доступность внешних хранилищ
func (a *App) Health(ctx context.Context) error {
	for _, check := range a.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close освобождает ресурсы в обратном порядке открытия
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
