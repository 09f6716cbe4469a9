package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront/internal/domain"
)

// OpenPostgres открывает пул соединений GORM к Postgres
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	return db, nil
}

type gormTxKey struct{}

// conn возвращает транзакцию из контекста, если она открыта
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return db.WithContext(ctx)
}

func mapGormErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GormTx менеджер транзакций поверх gorm.DB.Transaction
type GormTx struct{ db *gorm.DB }

func NewGormTx(db *gorm.DB) *GormTx { return &GormTx{db: db} }

var _ TxManager = (*GormTx)(nil)

func (t *GormTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, gormTxKey{}, tx))
	})
}

// GormStore каталог и способы доставки в Postgres
type GormStore struct{ db *gorm.DB }

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

var (
	_ ProductRepository  = (*GormStore)(nil)
	_ ShippingRepository = (*GormStore)(nil)
)

func (s *GormStore) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	rec := newProductRecord(p)
	if err := conn(ctx, s.db).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	p.CreatedAt = rec.CreatedAt
	p.UpdatedAt = rec.UpdatedAt
	return nil
}

func (s *GormStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var rec productRecord
	if err := conn(ctx, s.db).First(&rec, "id = ?", id).Error; err != nil {
		return nil, mapGormErr(err)
	}
	p := rec.toDomain()
	return &p, nil
}

func (s *GormStore) Update(ctx context.Context, p *domain.Product) error {
	db := conn(ctx, s.db)
	var prev productRecord
	if err := db.First(&prev, "id = ?", p.ID).Error; err != nil {
		return mapGormErr(err)
	}
	rec := newProductRecord(p)
	rec.CreatedAt = prev.CreatedAt
	if err := db.Save(&rec).Error; err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	p.CreatedAt = rec.CreatedAt
	p.UpdatedAt = rec.UpdatedAt
	return nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := conn(ctx, s.db).Delete(&productRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	q := conn(ctx, s.db).Model(&productRecord{})
	if f.NameSubstring != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(f.NameSubstring)+"%")
	}
	if f.Type != "" {
		q = q.Where("type = ?", string(f.Type))
	}
	if f.MinPrice != nil {
		q = q.Where("base_price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("base_price <= ?", *f.MaxPrice)
	}
	var recs []productRecord
	if err := q.Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	out := make([]domain.Product, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *GormStore) CreateShippingMethod(ctx context.Context, m *domain.ShippingMethod) error {
	rec := shippingMethodRecord{ID: m.ID, Name: m.Name, Cost: m.Cost}
	if err := conn(ctx, s.db).Save(&rec).Error; err != nil {
		return fmt.Errorf("upsert shipping method: %w", err)
	}
	return nil
}

func (s *GormStore) GetShippingMethod(ctx context.Context, id string) (*domain.ShippingMethod, error) {
	var rec shippingMethodRecord
	if err := conn(ctx, s.db).First(&rec, "id = ?", id).Error; err != nil {
		return nil, mapGormErr(err)
	}
	return &domain.ShippingMethod{ID: rec.ID, Name: rec.Name, Cost: rec.Cost}, nil
}

func (s *GormStore) ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	var recs []shippingMethodRecord
	if err := conn(ctx, s.db).Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query shipping methods: %w", err)
	}
	out := make([]domain.ShippingMethod, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.ShippingMethod{ID: r.ID, Name: r.Name, Cost: r.Cost})
	}
	return out, nil
}

// GormOrders заказы и их позиции в Postgres
type GormOrders struct{ db *gorm.DB }

func NewGormOrders(db *gorm.DB) *GormOrders { return &GormOrders{db: db} }

var _ OrderRepository = (*GormOrders)(nil)

func (r *GormOrders) Create(ctx context.Context, o *domain.Order) error {
	rec := newOrderRecord(o)
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.CreatedAt = rec.CreatedAt
	o.UpdatedAt = rec.UpdatedAt
	return nil
}

func (r *GormOrders) AddItem(ctx context.Context, item *domain.OrderItem) error {
	rec := newOrderItemRecord(item)
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	item.ID = rec.ID
	return nil
}

func (r *GormOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	db := conn(ctx, r.db)
	var rec orderRecord
	if err := db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, mapGormErr(err)
	}
	items, err := r.itemsFor(db, []string{rec.ID})
	if err != nil {
		return nil, err
	}
	o := rec.toDomain(items[rec.ID])
	return &o, nil
}

func (r *GormOrders) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	db := conn(ctx, r.db)
	var recs []orderRecord
	if err := db.Where("customer_id = ?", customerID).Order("created_at DESC, order_number DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query orders by customer: %w", err)
	}
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	items, err := r.itemsFor(db, ids)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain(items[rec.ID]))
	}
	return out, nil
}

func (r *GormOrders) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, payment domain.PaymentStatus) error {
	res := conn(ctx, r.db).Model(&orderRecord{}).Where("id = ?", id).Updates(map[string]any{
		"status":         string(status),
		"payment_status": string(payment),
		"updated_at":     time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("update order status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormOrders) itemsFor(db *gorm.DB, orderIDs []string) (map[string][]domain.OrderItem, error) {
	out := make(map[string][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var recs []orderItemRecord
	if err := db.Where("order_id IN ?", orderIDs).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	for _, rec := range recs {
		out[rec.OrderID] = append(out[rec.OrderID], rec.toDomain())
	}
	return out, nil
}

// GormOutbox outbox событий в Postgres
type GormOutbox struct{ db *gorm.DB }

func NewGormOutbox(db *gorm.DB) *GormOutbox { return &GormOutbox{db: db} }

var _ OutboxRepository = (*GormOutbox)(nil)

func (r *GormOutbox) Add(ctx context.Context, e *OutboxEvent) error {
	rec := outboxRecord{AggregateID: e.AggregateID, EventType: e.EventType, Payload: e.Payload}
	if err := conn(ctx, r.db).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	e.ID = rec.ID
	e.CreatedAt = rec.CreatedAt
	return nil
}

func (r *GormOutbox) Unpublished(ctx context.Context, limit int) ([]OutboxEvent, error) {
	q := conn(ctx, r.db).Where("published_at IS NULL").Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []outboxRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	out := make([]OutboxEvent, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *GormOutbox) MarkPublished(ctx context.Context, id int64) error {
	res := conn(ctx, r.db).Model(&outboxRecord{}).Where("id = ?", id).Update("published_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("mark outbox event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
