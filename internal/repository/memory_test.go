package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMemoryStore_ProductCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p := domain.Product{Title: "Mug", SKU: "S1", Type: domain.ProductTypeSimple, BasePrice: price("10")}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("no id")
	}

	got, err := store.GetByID(ctx, p.ID)
	if err != nil || got.ID != p.ID {
		t.Fatalf("get: %v", err)
	}

	p.BasePrice = price("12")
	if err := store.Update(ctx, &p); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.GetByID(ctx, p.ID)
	if !got.BasePrice.Equal(price("12")) {
		t.Fatalf("price not updated: %v", got.BasePrice)
	}

	if err := store.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_CreateKeepsExplicitID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p := domain.Product{ID: "1", Title: "A", SKU: "A", Type: domain.ProductTypeSimple, BasePrice: price("1")}
	if err := store.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}
	// generated id must skip the taken "1"
	q := domain.Product{Title: "B", SKU: "B", Type: domain.ProductTypeSimple, BasePrice: price("1")}
	if err := store.Create(ctx, &q); err != nil {
		t.Fatal(err)
	}
	if q.ID == "1" {
		t.Fatalf("generated id collides with explicit id")
	}
}

func TestMemoryTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	orders := NewMemoryOrders(store)

	boom := errors.New("item insert failed")
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := domain.Order{ID: "o1", OrderNumber: "ORD-20260101-AAAA", CustomerID: "c1"}
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		if err := orders.AddItem(ctx, &domain.OrderItem{OrderID: "o1", ProductID: "p1", Quantity: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := orders.GetByID(ctx, "o1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("order must be rolled back, got %v", err)
	}
	list, _ := orders.ListByCustomer(ctx, "c1")
	if len(list) != 0 {
		t.Fatalf("expected no orders, got %d", len(list))
	}
}

func TestMemoryTx_Commit(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tx := NewMemoryTx(store)
	orders := NewMemoryOrders(store)

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		o := domain.Order{ID: "o1", CustomerID: "c1", Status: domain.OrderStatusPending}
		if err := orders.Create(ctx, &o); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if err := orders.AddItem(ctx, &domain.OrderItem{OrderID: "o1", ProductID: "p1", Quantity: 1}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	o, err := orders.GetByID(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(o.Items) != 2 || o.Items[0].ID == o.Items[1].ID {
		t.Fatalf("unexpected items: %+v", o.Items)
	}
}

func TestMemoryOrders_AddItemUnknownOrder(t *testing.T) {
	orders := NewMemoryOrders(NewMemoryStore())
	err := orders.AddItem(context.Background(), &domain.OrderItem{OrderID: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryOrders_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	orders := NewMemoryOrders(NewMemoryStore())
	o := domain.Order{ID: "o1", CustomerID: "c1", Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusPending}
	if err := orders.Create(ctx, &o); err != nil {
		t.Fatal(err)
	}
	if err := orders.UpdateStatus(ctx, "o1", domain.OrderStatusCancelled, domain.PaymentStatusPending); err != nil {
		t.Fatal(err)
	}
	got, _ := orders.GetByID(ctx, "o1")
	if got.Status != domain.OrderStatusCancelled {
		t.Fatalf("status not updated: %v", got.Status)
	}
	if err := orders.UpdateStatus(ctx, "nope", domain.OrderStatusCancelled, domain.PaymentStatusPending); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestList_Filtering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	add := func(n string, p string, typ domain.ProductType) {
		prod := domain.Product{Title: n, SKU: n, Type: typ, BasePrice: price(p)}
		if err := store.Create(ctx, &prod); err != nil {
			t.Fatal(err)
		}
	}
	add("Coffee mug", "100", domain.ProductTypeSimple)
	add("T-shirt", "50", domain.ProductTypeVariable)
	add("Gift box", "150", domain.ProductTypeGroup)

	// name contains
	list, _ := store.List(ctx, ProductFilter{NameSubstring: "MUG"})
	if len(list) != 1 {
		t.Fatalf("name filter: got %d", len(list))
	}

	// min
	min := price("100")
	list, _ = store.List(ctx, ProductFilter{MinPrice: &min})
	for _, p := range list {
		if p.BasePrice.LessThan(min) {
			t.Fatalf("min filter fail")
		}
	}

	// max
	max := price("100")
	list, _ = store.List(ctx, ProductFilter{MaxPrice: &max})
	for _, p := range list {
		if p.BasePrice.GreaterThan(max) {
			t.Fatalf("max filter fail")
		}
	}

	list, _ = store.List(ctx, ProductFilter{Type: domain.ProductTypeGroup})
	if len(list) != 1 || list[0].Title != "Gift box" {
		t.Fatalf("type filter fail: %+v", list)
	}
}

func TestMemoryStore_ShippingMethods(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for _, m := range []domain.ShippingMethod{
		{ID: "standard", Name: "Standard", Cost: price("5")},
		{ID: "express", Name: "Express", Cost: price("15")},
	} {
		m := m
		if err := store.CreateShippingMethod(ctx, &m); err != nil {
			t.Fatal(err)
		}
	}
	list, _ := store.ListShippingMethods(ctx)
	if len(list) != 2 || list[0].ID != "standard" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if _, err := store.GetShippingMethod(ctx, "drone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryCartStore_OptimisticVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCartStore()

	st, err := s.Load(ctx, "c1")
	if err != nil || st.Version != 0 || len(st.Items) != 0 {
		t.Fatalf("empty load: %+v %v", st, err)
	}

	items := []domain.CartLineItem{{ProductID: "p1", ProductPrice: price("10"), Quantity: 1}}
	st, err = s.Save(ctx, "c1", 0, items)
	if err != nil || st.Version != 1 {
		t.Fatalf("first save: %+v %v", st, err)
	}

	if _, err := s.Save(ctx, "c1", 0, nil); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	st, err = s.Load(ctx, "c1")
	if err != nil || st.Version != 1 || len(st.Items) != 1 {
		t.Fatalf("reload: %+v %v", st, err)
	}
}

func TestMemoryCartStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryCartStore()
	s.putRaw("c1", []byte(`{"schema":1,"items":[{"productId":`))

	st, err := s.Load(ctx, "c1")
	if !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected corrupt state, got %v", err)
	}
	if len(st.Items) != 0 {
		t.Fatalf("corrupt load must yield empty items")
	}

	// unreadable document counts as version 0 and can be overwritten
	if _, err := s.Save(ctx, "c1", 0, nil); err != nil {
		t.Fatalf("overwrite corrupt: %v", err)
	}
}

func TestMemoryOutbox_RollbackAndPublish(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	outbox := NewMemoryOutbox(store)
	tx := NewMemoryTx(store)

	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := outbox.Add(ctx, &OutboxEvent{AggregateID: "o-1", EventType: "order.placed", Payload: []byte(`{}`)}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if pending, _ := outbox.Unpublished(ctx, 10); len(pending) != 0 {
		t.Fatalf("rolled back event must vanish, got %d", len(pending))
	}

	for _, id := range []string{"o-2", "o-3"} {
		if err := outbox.Add(ctx, &OutboxEvent{AggregateID: id, EventType: "order.placed", Payload: []byte(`{}`)}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	pending, _ := outbox.Unpublished(ctx, 1)
	if len(pending) != 1 || pending[0].AggregateID != "o-2" {
		t.Fatalf("expected oldest event first, got %+v", pending)
	}
	if err := outbox.MarkPublished(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark: %v", err)
	}
	pending, _ = outbox.Unpublished(ctx, 10)
	if len(pending) != 1 || pending[0].AggregateID != "o-3" {
		t.Fatalf("expected only o-3 pending, got %+v", pending)
	}
	if err := outbox.MarkPublished(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
