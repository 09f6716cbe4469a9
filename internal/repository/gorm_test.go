package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"storefront/internal/domain"
	"storefront/internal/migrations"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storefront"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenPostgres(dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrations.Up(sqlDB))
	return db
}

func TestGormStore_ProductsAndShipping(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	store := NewGormStore(db)

	p := domain.Product{
		Title:      "T-shirt",
		SKU:        "TS-1",
		Type:       domain.ProductTypeVariable,
		BasePrice:  price("20"),
		Variations: []domain.VariationAttribute{{Name: "Size", Values: []string{"S", "M"}}},
		Variants: []domain.Variant{
			{Attributes: map[string]string{"Size": "M"}, Price: price("22.50")},
		},
	}
	require.NoError(t, store.Create(ctx, &p))
	require.NotEmpty(t, p.ID)

	got, err := store.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductTypeVariable, got.Type)
	require.Len(t, got.Variants, 1)
	assert.True(t, got.Variants[0].Price.Equal(price("22.5")))

	got.BasePrice = price("21")
	require.NoError(t, store.Update(ctx, got))

	min := price("21")
	list, err := store.List(ctx, ProductFilter{NameSubstring: "shirt", MinPrice: &min})
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, store.Delete(ctx, p.ID))
	_, err = store.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, p.ID), ErrNotFound)

	methods, err := store.ListShippingMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, 2)

	m, err := store.GetShippingMethod(ctx, "express")
	require.NoError(t, err)
	assert.True(t, m.Cost.Equal(price("15")))
}

func TestGormOrders_TransactionIsAtomic(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	orders := NewGormOrders(db)
	tx := NewGormTx(db)

	newOrder := func(id, number string) domain.Order {
		return domain.Order{
			ID:          id,
			OrderNumber: number,
			CustomerID:  "c1",
			CustomerDetails: domain.CustomerDetails{
				Email: "a@b.c", FirstName: "Ann", LastName: "Lee", Address: "1 Main",
				City: "Oslo", State: "Oslo", Country: "NO", PostalCode: "0150",
			},
			ShippingMethodID:   "standard",
			ShippingMethodName: "Standard delivery",
			Subtotal:           price("10"),
			ShippingCost:       price("5"),
			Total:              price("15"),
			Status:             domain.OrderStatusPending,
			PaymentStatus:      domain.PaymentStatusPending,
		}
	}

	// second item violates the quantity check, the whole order must vanish
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := newOrder("o-fail", "ORD-20260101-FAIL")
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		if err := orders.AddItem(ctx, &domain.OrderItem{OrderID: o.ID, ProductID: "p1", ProductName: "Mug", Price: price("10"), Quantity: 1, TotalPrice: price("10")}); err != nil {
			return err
		}
		return orders.AddItem(ctx, &domain.OrderItem{OrderID: o.ID, ProductID: "p2", ProductName: "Bad", Price: price("1"), Quantity: 0, TotalPrice: price("0")})
	})
	require.Error(t, err)
	_, err = orders.GetByID(ctx, "o-fail")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	err = tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := newOrder("o-ok", "ORD-20260101-GOOD")
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		return orders.AddItem(ctx, &domain.OrderItem{
			OrderID:     o.ID,
			ProductID:   "p2",
			ProductName: "Gift box",
			Price:       price("5"),
			Quantity:    1,
			Addons:      []domain.SelectedAddon{{AddonID: "a1", Title: "Card", Price: price("2"), Quantity: 2}},
			TotalPrice:  price("9"),
		})
	})
	require.NoError(t, err)

	o, err := orders.GetByID(ctx, "o-ok")
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	require.Len(t, o.Items[0].Addons, 1)
	assert.Equal(t, "a1", o.Items[0].Addons[0].AddonID)

	list, err := orders.ListByCustomer(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ORD-20260101-GOOD", list[0].OrderNumber)

	require.NoError(t, orders.UpdateStatus(ctx, "o-ok", domain.OrderStatusCancelled, domain.PaymentStatusPending))
	o, _ = orders.GetByID(ctx, "o-ok")
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)
}

func TestGormOutbox_AddInTransactionAndMark(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	outbox := NewGormOutbox(db)
	tx := NewGormTx(db)

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := outbox.Add(ctx, &OutboxEvent{AggregateID: "o-fail", EventType: "order.placed", Payload: []byte(`{"orderId":"o-fail"}`)}); err != nil {
			return err
		}
		return errors.New("rollback")
	})
	require.Error(t, err)

	require.NoError(t, outbox.Add(ctx, &OutboxEvent{AggregateID: "o-ok", EventType: "order.placed", Payload: []byte(`{"orderId":"o-ok"}`)}))
	pending, err := outbox.Unpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "o-ok", pending[0].AggregateID)
	assert.JSONEq(t, `{"orderId":"o-ok"}`, string(pending[0].Payload))

	require.NoError(t, outbox.MarkPublished(ctx, pending[0].ID))
	pending, err = outbox.Unpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.ErrorIs(t, outbox.MarkPublished(ctx, 999999), ErrNotFound)
}

func TestGormOrders_GroupLineWithZeroBasePrice(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	orders := NewGormOrders(db)

	o := domain.Order{
		ID: "o-bundle", OrderNumber: "ORD-20260101-BNDL", CustomerID: "c1",
		CustomerDetails: domain.CustomerDetails{
			Email: "a@b.c", FirstName: "Ann", LastName: "Lee", Address: "1 Main",
			City: "Oslo", State: "Oslo", Country: "NO", PostalCode: "0150",
		},
		ShippingMethodID: "standard", ShippingMethodName: "Standard delivery",
		Subtotal: price("8"), ShippingCost: price("5"), Total: price("13"),
		Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusPending,
	}
	require.NoError(t, orders.Create(ctx, &o))
	require.NoError(t, orders.AddItem(ctx, &domain.OrderItem{
		OrderID: o.ID, ProductID: "tea-box", ProductName: "Tea box", Price: price("0"), Quantity: 1,
		Addons:     []domain.SelectedAddon{{AddonID: "tea", Title: "Tea", Price: price("4"), Quantity: 2}},
		TotalPrice: price("8"),
	}))
	assert.Error(t, orders.AddItem(ctx, &domain.OrderItem{
		OrderID: o.ID, ProductID: "free", ProductName: "Free", Price: price("0"), Quantity: 1, TotalPrice: price("0"),
	}))
}
