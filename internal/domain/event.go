package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/namimod25/toko-online/pkg/catalog"
)

// EntityProduct is the only entity kind the catalog feed carries today.
const EntityProduct = "product"

var ErrUnknownEvent = errors.New("unknown catalog event")

// CatalogEvent is an immutable record of one committed product mutation. The set of
// implementations is closed: ProductCreated, ProductUpdated, ProductDeleted and
// StockChanged.
type CatalogEvent interface {
	Kind() catalog.Kind
	EntityKind() string
	EntityID() string
	CommittedAt() time.Time
	// Payload is the message body for the given audience.
	Payload(scope catalog.Scope) any

	isCatalogEvent()
}

type ProductCreated struct {
	Product catalog.Product
	At      time.Time
}

type ProductUpdated struct {
	Product catalog.Product
	At      time.Time
}

type ProductDeleted struct {
	ID string
	At time.Time
}

type StockChanged struct {
	ID       string
	Previous int64
	Stock    int64
	At       time.Time
}

func NewProductCreated(p *Product) ProductCreated {
	return ProductCreated{Product: p.Catalog(), At: time.Now().UTC()}
}

func NewProductUpdated(p *Product) ProductUpdated {
	return ProductUpdated{Product: p.Catalog(), At: time.Now().UTC()}
}

func NewProductDeleted(id string) ProductDeleted {
	return ProductDeleted{ID: id, At: time.Now().UTC()}
}

func NewStockChanged(id string, previous, stock int64) StockChanged {
	return StockChanged{ID: id, Previous: previous, Stock: stock, At: time.Now().UTC()}
}

func (e ProductCreated) Kind() catalog.Kind     { return catalog.Created }
func (e ProductCreated) EntityKind() string     { return EntityProduct }
func (e ProductCreated) EntityID() string       { return e.Product.ID }
func (e ProductCreated) CommittedAt() time.Time { return e.At }
func (ProductCreated) isCatalogEvent()          {}

func (e ProductCreated) Payload(scope catalog.Scope) any {
	if scope == catalog.ScopeAdmin {
		return catalog.AdminProductPayload{Product: e.Product, CommittedAt: e.At}
	}
	return e.Product
}

func (e ProductUpdated) Kind() catalog.Kind     { return catalog.Updated }
func (e ProductUpdated) EntityKind() string     { return EntityProduct }
func (e ProductUpdated) EntityID() string       { return e.Product.ID }
func (e ProductUpdated) CommittedAt() time.Time { return e.At }
func (ProductUpdated) isCatalogEvent()          {}

func (e ProductUpdated) Payload(scope catalog.Scope) any {
	if scope == catalog.ScopeAdmin {
		return catalog.AdminProductPayload{Product: e.Product, CommittedAt: e.At}
	}
	return e.Product
}

func (e ProductDeleted) Kind() catalog.Kind     { return catalog.Deleted }
func (e ProductDeleted) EntityKind() string     { return EntityProduct }
func (e ProductDeleted) EntityID() string       { return e.ID }
func (e ProductDeleted) CommittedAt() time.Time { return e.At }
func (ProductDeleted) isCatalogEvent()          {}

func (e ProductDeleted) Payload(scope catalog.Scope) any {
	if scope == catalog.ScopeAdmin {
		return catalog.AdminDeletedPayload{ID: e.ID, CommittedAt: e.At}
	}
	return catalog.DeletedPayload{ID: e.ID}
}

func (e StockChanged) Kind() catalog.Kind     { return catalog.StockChanged }
func (e StockChanged) EntityKind() string     { return EntityProduct }
func (e StockChanged) EntityID() string       { return e.ID }
func (e StockChanged) CommittedAt() time.Time { return e.At }
func (StockChanged) isCatalogEvent()          {}

func (e StockChanged) Payload(scope catalog.Scope) any {
	if scope == catalog.ScopeAdmin {
		return catalog.AdminStockPayload{
			ID:            e.ID,
			Stock:         e.Stock,
			PreviousStock: e.Previous,
			Delta:         e.Stock - e.Previous,
			CommittedAt:   e.At,
		}
	}
	return catalog.StockPayload{ID: e.ID, Stock: e.Stock}
}

// eventEnvelope is the relay bus encoding of a CatalogEvent.
type eventEnvelope struct {
	Kind     catalog.Kind    `json:"kind"`
	EntityID string          `json:"entityId"`
	At       time.Time       `json:"at"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type stockData struct {
	Previous int64 `json:"previous"`
	Stock    int64 `json:"stock"`
}

func MarshalEvent(evt CatalogEvent) ([]byte, error) {
	env := eventEnvelope{
		Kind:     evt.Kind(),
		EntityID: evt.EntityID(),
		At:       evt.CommittedAt(),
	}

	var data any
	switch e := evt.(type) {
	case ProductCreated:
		data = e.Product
	case ProductUpdated:
		data = e.Product
	case ProductDeleted:
	case StockChanged:
		data = stockData{Previous: e.Previous, Stock: e.Stock}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, evt)
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s event data: %w", env.Kind, err)
		}
		env.Data = raw
	}

	return json.Marshal(env)
}

func UnmarshalEvent(b []byte) (CatalogEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	if _, _, err := catalog.ParseRoom(catalog.ProductRoom(env.EntityID)); err != nil {
		return nil, fmt.Errorf("%w: entity id %q", ErrUnknownEvent, env.EntityID)
	}

	switch env.Kind {
	case catalog.Created, catalog.Updated:
		var p catalog.Product
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("unmarshal %s event data: %w", env.Kind, err)
		}
		if p.ID != env.EntityID {
			return nil, fmt.Errorf("%w: product id %q does not match entity id %q", ErrUnknownEvent, p.ID, env.EntityID)
		}
		if env.Kind == catalog.Created {
			return ProductCreated{Product: p, At: env.At}, nil
		}
		return ProductUpdated{Product: p, At: env.At}, nil
	case catalog.Deleted:
		return ProductDeleted{ID: env.EntityID, At: env.At}, nil
	case catalog.StockChanged:
		var s stockData
		if err := json.Unmarshal(env.Data, &s); err != nil {
			return nil, fmt.Errorf("unmarshal %s event data: %w", env.Kind, err)
		}
		return StockChanged{ID: env.EntityID, Previous: s.Previous, Stock: s.Stock, At: env.At}, nil
	}

	return nil, fmt.Errorf("%w: kind %q", ErrUnknownEvent, env.Kind)
}
