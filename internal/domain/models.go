package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType закрытый набор типов товара
type ProductType string

const (
	ProductTypeSimple   ProductType = "simple"
	ProductTypeVariable ProductType = "variable"
	ProductTypeGroup    ProductType = "group"
)

func (t ProductType) Valid() bool {
	switch t {
	case ProductTypeSimple, ProductTypeVariable, ProductTypeGroup:
		return true
	}
	return false
}

// VariationAttribute ось конфигурации товара (Color, Size) с конечным набором значений
type VariationAttribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

func (a VariationAttribute) Allows(value string) bool {
	for _, v := range a.Values {
		if v == value {
			return true
		}
	}
	return false
}

// Variant цена конкретной комбинации атрибутов
type Variant struct {
	Attributes map[string]string `json:"attributes"`
	Price      decimal.Decimal   `json:"price"`
	SKU        string            `json:"sku,omitempty"`
}

// Addon дополнение к товару со своей ценой
type Addon struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// Product товар каталога
type Product struct {
	ID         string               `json:"id"`
	Title      string               `json:"title"`
	SKU        string               `json:"sku"`
	Image      string               `json:"image,omitempty"`
	Type       ProductType          `json:"type"`
	BasePrice  decimal.Decimal      `json:"basePrice"`
	Variations []VariationAttribute `json:"variations,omitempty"`
	Variants   []Variant            `json:"variants,omitempty"`
	Addons     []Addon              `json:"addons,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

func (p Product) Addon(id string) (Addon, bool) {
	for _, a := range p.Addons {
		if a.ID == id {
			return a, true
		}
	}
	return Addon{}, false
}

// VariantFor ищет вариант с точно такой же комбинацией атрибутов
func (p Product) VariantFor(combination map[string]string) (Variant, bool) {
	key := VariationsKey(combination)
	for _, v := range p.Variants {
		if VariationsKey(v.Attributes) == key {
			return v, true
		}
	}
	return Variant{}, false
}

// ShippingMethod способ доставки
type ShippingMethod struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Cost decimal.Decimal `json:"cost"`
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "pending"
	OrderStatusConfirmed   OrderStatus = "confirmed"
	OrderStatusReadyToShip OrderStatus = "ready_to_ship"
	OrderStatusShipped     OrderStatus = "shipped"
	OrderStatusDelivered   OrderStatus = "delivered"
	OrderStatusReturned    OrderStatus = "returned"
	OrderStatusCancelled   OrderStatus = "cancelled"
)

// PaymentStatus статус оплаты
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// CustomerDetails контактные данные и адрес доставки
type CustomerDetails struct {
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	Notes      string `json:"notes,omitempty"`
}

// MissingFields возвращает имена обязательных полей, которые не заполнены
func (c CustomerDetails) MissingFields() []string {
	required := []struct {
		name  string
		value string
	}{
		{"email", c.Email},
		{"firstName", c.FirstName},
		{"lastName", c.LastName},
		{"address", c.Address},
		{"city", c.City},
		{"state", c.State},
		{"country", c.Country},
		{"postalCode", c.PostalCode},
	}
	var missing []string
	for _, f := range required {
		if isBlank(f.value) {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// OrderItem снимок позиции корзины на момент заказа
type OrderItem struct {
	ID                 int64             `json:"id"`
	OrderID            string            `json:"orderId"`
	ProductID          string            `json:"productId"`
	ProductName        string            `json:"productName"`
	ProductSKU         string            `json:"productSku,omitempty"`
	ProductImage       string            `json:"productImage,omitempty"`
	Price              decimal.Decimal   `json:"price"`
	Quantity           int               `json:"quantity"`
	SelectedVariations map[string]string `json:"selectedVariations,omitempty"`
	Addons             []SelectedAddon   `json:"addons"`
	TotalPrice         decimal.Decimal   `json:"totalPrice"`
}

// Order сущность заказа
type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	CustomerID  string `json:"customerId"`
	CustomerDetails
	ShippingMethodID   string          `json:"shippingMethodId"`
	ShippingMethodName string          `json:"shippingMethodName"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	ShippingCost       decimal.Decimal `json:"shippingCost"`
	Total              decimal.Decimal `json:"total"`
	Status             OrderStatus     `json:"status"`
	PaymentStatus      PaymentStatus   `json:"paymentStatus"`
	Items              []OrderItem     `json:"items"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}
