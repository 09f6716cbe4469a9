package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type productRecord struct {
	ID         string                      `gorm:"column:id;primaryKey"`
	Title      string                      `gorm:"column:title;not null"`
	SKU        string                      `gorm:"column:sku;not null"`
	Image      string                      `gorm:"column:image"`
	Type       string                      `gorm:"column:type;not null"`
	BasePrice  decimal.Decimal             `gorm:"column:base_price;type:numeric(12,2);not null"`
	Variations []domain.VariationAttribute `gorm:"column:variations;type:jsonb;serializer:json"`
	Variants   []domain.Variant            `gorm:"column:variants;type:jsonb;serializer:json"`
	Addons     []domain.Addon              `gorm:"column:addons;type:jsonb;serializer:json"`
	CreatedAt  time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (productRecord) TableName() string { return "products" }

func newProductRecord(p *domain.Product) productRecord {
	return productRecord{
		ID:         p.ID,
		Title:      p.Title,
		SKU:        p.SKU,
		Image:      p.Image,
		Type:       string(p.Type),
		BasePrice:  p.BasePrice,
		Variations: p.Variations,
		Variants:   p.Variants,
		Addons:     p.Addons,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (r productRecord) toDomain() domain.Product {
	return domain.Product{
		ID:         r.ID,
		Title:      r.Title,
		SKU:        r.SKU,
		Image:      r.Image,
		Type:       domain.ProductType(r.Type),
		BasePrice:  r.BasePrice,
		Variations: r.Variations,
		Variants:   r.Variants,
		Addons:     r.Addons,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type shippingMethodRecord struct {
	ID        string          `gorm:"column:id;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	Cost      decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (shippingMethodRecord) TableName() string { return "shipping_methods" }

type orderRecord struct {
	ID                 string          `gorm:"column:id;primaryKey"`
	OrderNumber        string          `gorm:"column:order_number;uniqueIndex;not null"`
	CustomerID         string          `gorm:"column:customer_id;index;not null"`
	Email              string          `gorm:"column:email;not null"`
	FirstName          string          `gorm:"column:first_name;not null"`
	LastName           string          `gorm:"column:last_name;not null"`
	Phone              string          `gorm:"column:phone"`
	Address            string          `gorm:"column:address;not null"`
	City               string          `gorm:"column:city;not null"`
	State              string          `gorm:"column:state;not null"`
	Country            string          `gorm:"column:country;not null"`
	PostalCode         string          `gorm:"column:postal_code;not null"`
	Notes              string          `gorm:"column:notes"`
	ShippingMethodID   string          `gorm:"column:shipping_method_id;not null"`
	ShippingMethodName string          `gorm:"column:shipping_method_name;not null"`
	Subtotal           decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingCost       decimal.Decimal `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Total              decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Status             string          `gorm:"column:status;type:varchar(20);not null"`
	PaymentStatus      string          `gorm:"column:payment_status;type:varchar(20);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (orderRecord) TableName() string { return "orders" }

func newOrderRecord(o *domain.Order) orderRecord {
	return orderRecord{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		CustomerID:         o.CustomerID,
		Email:              o.Email,
		FirstName:          o.FirstName,
		LastName:           o.LastName,
		Phone:              o.Phone,
		Address:            o.Address,
		City:               o.City,
		State:              o.State,
		Country:            o.Country,
		PostalCode:         o.PostalCode,
		Notes:              o.Notes,
		ShippingMethodID:   o.ShippingMethodID,
		ShippingMethodName: o.ShippingMethodName,
		Subtotal:           o.Subtotal,
		ShippingCost:       o.ShippingCost,
		Total:              o.Total,
		Status:             string(o.Status),
		PaymentStatus:      string(o.PaymentStatus),
	}
}

func (r orderRecord) toDomain(items []domain.OrderItem) domain.Order {
	if items == nil {
		items = []domain.OrderItem{}
	}
	return domain.Order{
		ID:          r.ID,
		OrderNumber: r.OrderNumber,
		CustomerID:  r.CustomerID,
		CustomerDetails: domain.CustomerDetails{
			Email:      r.Email,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			Phone:      r.Phone,
			Address:    r.Address,
			City:       r.City,
			State:      r.State,
			Country:    r.Country,
			PostalCode: r.PostalCode,
			Notes:      r.Notes,
		},
		ShippingMethodID:   r.ShippingMethodID,
		ShippingMethodName: r.ShippingMethodName,
		Subtotal:           r.Subtotal,
		ShippingCost:       r.ShippingCost,
		Total:              r.Total,
		Status:             domain.OrderStatus(r.Status),
		PaymentStatus:      domain.PaymentStatus(r.PaymentStatus),
		Items:              items,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// orderItemRecord снимок позиции; addons пишутся один раз одним JSON-кодированием
type orderItemRecord struct {
	ID                 int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID            string                 `gorm:"column:order_id;index;not null"`
	ProductID          string                 `gorm:"column:product_id;not null"`
	ProductName        string                 `gorm:"column:product_name;not null"`
	ProductSKU         string                 `gorm:"column:product_sku"`
	ProductImage       string                 `gorm:"column:product_image"`
	Price              decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity           int                    `gorm:"column:quantity;not null"`
	SelectedVariations map[string]string      `gorm:"column:selected_variations;type:jsonb;serializer:json"`
	Addons             []domain.SelectedAddon `gorm:"column:addons;type:jsonb;serializer:json"`
	TotalPrice         decimal.Decimal        `gorm:"column:total_price;type:numeric(12,2);not null"`
}

func (orderItemRecord) TableName() string { return "order_items" }

func newOrderItemRecord(it *domain.OrderItem) orderItemRecord {
	addons := it.Addons
	if addons == nil {
		addons = []domain.SelectedAddon{}
	}
	return orderItemRecord{
		OrderID:            it.OrderID,
		ProductID:          it.ProductID,
		ProductName:        it.ProductName,
		ProductSKU:         it.ProductSKU,
		ProductImage:       it.ProductImage,
		Price:              it.Price,
		Quantity:           it.Quantity,
		SelectedVariations: it.SelectedVariations,
		Addons:             addons,
		TotalPrice:         it.TotalPrice,
	}
}

func (r orderItemRecord) toDomain() domain.OrderItem {
	return domain.OrderItem{
		ID:                 r.ID,
		OrderID:            r.OrderID,
		ProductID:          r.ProductID,
		ProductName:        r.ProductName,
		ProductSKU:         r.ProductSKU,
		ProductImage:       r.ProductImage,
		Price:              r.Price,
		Quantity:           r.Quantity,
		SelectedVariations: r.SelectedVariations,
		Addons:             r.Addons,
		TotalPrice:         r.TotalPrice,
	}
}

type outboxRecord struct {
	ID          int64      `gorm:"column:id;primaryKey;autoIncrement"`
	AggregateID string     `gorm:"column:aggregate_id;not null"`
	EventType   string     `gorm:"column:event_type;not null"`
	Payload     []byte     `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (outboxRecord) TableName() string { return "outbox_events" }

func (r outboxRecord) toDomain() OutboxEvent {
	return OutboxEvent{
		ID:          r.ID,
		AggregateID: r.AggregateID,
		EventType:   r.EventType,
		Payload:     r.Payload,
		CreatedAt:   r.CreatedAt,
		PublishedAt: r.PublishedAt,
	}
}
