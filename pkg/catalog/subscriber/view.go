package subscriber

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/namimod25/toko-online/pkg/catalog"
)

// View is a local copy of part of the catalog kept current from feed messages.
// Apply is idempotent, so the duplicate copies a client in several rooms
// receives for one event are harmless.
type View struct {
	mu       sync.RWMutex
	products map[string]catalog.Product
}

func NewView(initial ...catalog.Product) *View {
	v := &View{products: make(map[string]catalog.Product, len(initial))}
	for _, p := range initial {
		v.products[p.ID] = p
	}
	return v
}

// Apply reconciles one message into the view and reports whether anything
// changed. Control messages and unknown channels are ignored.
func (v *View) Apply(msg catalog.Message) (bool, error) {
	_, kind, _, ok := catalog.ParseChannel(msg.Channel)
	if !ok {
		return false, nil
	}

	switch kind {
	case catalog.Created, catalog.Updated:
		var p catalog.Product
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, fmt.Errorf("decode %s payload: %w", msg.Channel, err)
		}
		if p.ID == "" {
			return false, fmt.Errorf("decode %s payload: missing id", msg.Channel)
		}

		v.mu.Lock()
		defer v.mu.Unlock()

		current, exists := v.products[p.ID]
		if kind == catalog.Created && exists {
			return false, nil
		}
		if kind == catalog.Updated && (!exists || current == p) {
			return false, nil
		}
		v.products[p.ID] = p
		return true, nil

	case catalog.Deleted:
		var p catalog.DeletedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, fmt.Errorf("decode %s payload: %w", msg.Channel, err)
		}

		v.mu.Lock()
		defer v.mu.Unlock()

		if _, exists := v.products[p.ID]; !exists {
			return false, nil
		}
		delete(v.products, p.ID)
		return true, nil

	case catalog.StockChanged:
		var p catalog.StockPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return false, fmt.Errorf("decode %s payload: %w", msg.Channel, err)
		}

		v.mu.Lock()
		defer v.mu.Unlock()

		current, exists := v.products[p.ID]
		if !exists || current.Stock == p.Stock {
			return false, nil
		}
		current.Stock = p.Stock
		v.products[p.ID] = current
		return true, nil
	}

	return false, nil
}

// Reset replaces the whole view, typically after a refetch on reconnect.
func (v *View) Reset(products []catalog.Product) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.products = make(map[string]catalog.Product, len(products))
	for _, p := range products {
		v.products[p.ID] = p
	}
}

func (v *View) Get(id string) (catalog.Product, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	p, ok := v.products[id]
	return p, ok
}

// List returns the products sorted by id.
func (v *View) List() []catalog.Product {
	v.mu.RLock()
	out := make([]catalog.Product, 0, len(v.products))
	for _, p := range v.products {
		out = append(out, p)
	}
	v.mu.RUnlock()

	slices.SortFunc(out, func(a, b catalog.Product) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.products)
}
