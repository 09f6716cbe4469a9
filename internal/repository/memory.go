package repository

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"storefront/internal/domain"
)

// MemoryStore объединённое in-memory хранилище и простой генератор ID
type MemoryStore struct {
	mu            sync.RWMutex
	nextProdID    int64
	nextItemID    int64
	productsByID  map[string]domain.Product
	shippingByID  map[string]domain.ShippingMethod
	ordersByID    map[string]domain.Order
	itemsByOrder  map[string][]domain.OrderItem
	shippingOrder []string
	nextEventID   int64
	outbox        []OutboxEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextProdID:   1,
		nextItemID:   1,
		nextEventID:  1,
		productsByID: make(map[string]domain.Product),
		shippingByID: make(map[string]domain.ShippingMethod),
		ordersByID:   make(map[string]domain.Order),
		itemsByOrder: make(map[string][]domain.OrderItem),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var (
	_ ProductRepository  = (*MemoryStore)(nil)
	_ ShippingRepository = (*MemoryStore)(nil)
)

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if p.ID == "" {
		for {
			p.ID = strconv.FormatInt(m.nextProdID, 10)
			m.nextProdID++
			if _, taken := m.productsByID[p.ID]; !taken {
				break
			}
		}
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	prev, ok := m.productsByID[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = prev.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.productsByID[p.ID] = *p
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.productsByID[id]; !ok {
		return ErrNotFound
	}
	delete(m.productsByID, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range m.productsByID {
		if !f.Match(p) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ShippingRepository implementation
func (m *MemoryStore) CreateShippingMethod(ctx context.Context, sm *domain.ShippingMethod) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if _, ok := m.shippingByID[sm.ID]; !ok {
		m.shippingOrder = append(m.shippingOrder, sm.ID)
	}
	m.shippingByID[sm.ID] = *sm
	return nil
}

func (m *MemoryStore) GetShippingMethod(ctx context.Context, id string) (*domain.ShippingMethod, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	sm, ok := m.shippingByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := sm
	return &cp, nil
}

func (m *MemoryStore) ListShippingMethods(ctx context.Context) ([]domain.ShippingMethod, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.ShippingMethod, 0, len(m.shippingOrder))
	for _, id := range m.shippingOrder {
		out = append(out, m.shippingByID[id])
	}
	return out, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	row := *o
	row.Items = nil
	mo.store.ordersByID[o.ID] = row
	return nil
}

func (mo *MemoryOrders) AddItem(ctx context.Context, item *domain.OrderItem) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if _, ok := mo.store.ordersByID[item.OrderID]; !ok {
		return ErrNotFound
	}
	item.ID = mo.store.nextItemID
	mo.store.nextItemID++
	mo.store.itemsByOrder[item.OrderID] = append(mo.store.itemsByOrder[item.OrderID], *item)
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := mo.withItems(o)
	return &cp, nil
}

func (mo *MemoryOrders) ListByCustomer(ctx context.Context, customerID string) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, o := range mo.store.ordersByID {
		if o.CustomerID != customerID {
			continue
		}
		out = append(out, mo.withItems(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderNumber > out[j].OrderNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (mo *MemoryOrders) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, payment domain.PaymentStatus) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.PaymentStatus = payment
	o.UpdatedAt = time.Now().UTC()
	mo.store.ordersByID[id] = o
	return nil
}

func (mo *MemoryOrders) withItems(o domain.Order) domain.Order {
	items := mo.store.itemsByOrder[o.ID]
	o.Items = make([]domain.OrderItem, len(items))
	copy(o.Items, items)
	return o
}

// MemoryOutbox outbox событий в памяти; участвует в MemoryTx вместе с заказами
type MemoryOutbox struct{ store *MemoryStore }

func NewMemoryOutbox(store *MemoryStore) *MemoryOutbox { return &MemoryOutbox{store: store} }

var _ OutboxRepository = (*MemoryOutbox)(nil)

func (mo *MemoryOutbox) Add(ctx context.Context, e *OutboxEvent) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	e.ID = mo.store.nextEventID
	mo.store.nextEventID++
	e.CreatedAt = time.Now().UTC()
	e.PublishedAt = nil
	row := *e
	row.Payload = append([]byte(nil), e.Payload...)
	mo.store.outbox = append(mo.store.outbox, row)
	return nil
}

func (mo *MemoryOutbox) Unpublished(ctx context.Context, limit int) ([]OutboxEvent, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]OutboxEvent, 0)
	for _, e := range mo.store.outbox {
		if e.PublishedAt != nil {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (mo *MemoryOutbox) MarkPublished(ctx context.Context, id int64) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	// published events are dropped to keep memory bounded
	for i := range mo.store.outbox {
		if mo.store.outbox[i].ID == id {
			mo.store.outbox = append(mo.store.outbox[:i:i], mo.store.outbox[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// MemoryTx менеджер транзакций: блокировка записи на всё время fn
// и откат к снимку состояния, если fn вернула ошибку
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// nested call joins the outer transaction
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snap := tx.store.snapshot()
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	nextProdID    int64
	nextItemID    int64
	nextEventID   int64
	outbox        []OutboxEvent
	productsByID  map[string]domain.Product
	shippingByID  map[string]domain.ShippingMethod
	ordersByID    map[string]domain.Order
	itemsByOrder  map[string][]domain.OrderItem
	shippingOrder []string
}

func (m *MemoryStore) snapshot() memorySnapshot {
	s := memorySnapshot{
		nextProdID:    m.nextProdID,
		nextItemID:    m.nextItemID,
		nextEventID:   m.nextEventID,
		outbox:        append([]OutboxEvent(nil), m.outbox...),
		productsByID:  make(map[string]domain.Product, len(m.productsByID)),
		shippingByID:  make(map[string]domain.ShippingMethod, len(m.shippingByID)),
		ordersByID:    make(map[string]domain.Order, len(m.ordersByID)),
		itemsByOrder:  make(map[string][]domain.OrderItem, len(m.itemsByOrder)),
		shippingOrder: append([]string(nil), m.shippingOrder...),
	}
	for k, v := range m.productsByID {
		s.productsByID[k] = v
	}
	for k, v := range m.shippingByID {
		s.shippingByID[k] = v
	}
	for k, v := range m.ordersByID {
		s.ordersByID[k] = v
	}
	for k, v := range m.itemsByOrder {
		s.itemsByOrder[k] = append([]domain.OrderItem(nil), v...)
	}
	return s
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.nextProdID = s.nextProdID
	m.nextItemID = s.nextItemID
	m.nextEventID = s.nextEventID
	m.outbox = s.outbox
	m.productsByID = s.productsByID
	m.shippingByID = s.shippingByID
	m.ordersByID = s.ordersByID
	m.itemsByOrder = s.itemsByOrder
	m.shippingOrder = s.shippingOrder
}

// MemoryCartStore корзины в памяти процесса; документы хранятся в том же JSON, что и в Redis
type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string][]byte)}
}

var _ CartStore = (*MemoryCartStore)(nil)

func (s *MemoryCartStore) Load(_ context.Context, cartID string) (CartState, error) {
	s.mu.Lock()
	data, ok := s.carts[cartID]
	s.mu.Unlock()
	if !ok {
		return emptyCartState(), nil
	}
	return decodeCartState(data)
}

func (s *MemoryCartStore) Save(_ context.Context, cartID string, expectedVersion int64, items []domain.CartLineItem) (CartState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if storedVersion(s.carts[cartID]) != expectedVersion {
		return CartState{}, ErrVersionConflict
	}
	next := CartState{Version: expectedVersion + 1, Items: items}
	data, err := encodeCartState(next)
	if err != nil {
		return CartState{}, err
	}
	s.carts[cartID] = data
	return decodeCartState(data)
}

// putRaw кладёт документ как есть; нужен тестам деградации
func (s *MemoryCartStore) putRaw(cartID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[cartID] = data
}
