package events

import (
	"sync"

	"storefront/internal/domain"
)

// CartHub раздаёт снимки корзины подписчикам после каждого изменения.
// У каждого подписчика буфер на один снимок: медленный читатель получает
// только последний, писатель никогда не блокируется.
type CartHub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Cart]struct{}
}

func NewCartHub() *CartHub {
	return &CartHub{subs: make(map[string]map[chan domain.Cart]struct{})}
}

// Subscribe returns the snapshot channel and a cancel func that closes it.
func (h *CartHub) Subscribe(cartID string) (<-chan domain.Cart, func()) {
	ch := make(chan domain.Cart, 1)
	h.mu.Lock()
	set, ok := h.subs[cartID]
	if !ok {
		set = make(map[chan domain.Cart]struct{})
		h.subs[cartID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[cartID], ch)
			if len(h.subs[cartID]) == 0 {
				delete(h.subs, cartID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

func (h *CartHub) Publish(cartID string, cart domain.Cart) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[cartID] {
		// drop the stale snapshot, keep the latest
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cart:
		default:
		}
	}
}

func (h *CartHub) Subscribers(cartID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[cartID])
}
