package ws

import (
	"fmt"

	"github.com/namimod25/toko-online/internal/domain"
	"github.com/namimod25/toko-online/pkg/catalog"
)

// Route is what the router needs to know about an event to pick its rooms.
type Route struct {
	EntityKind string
	EntityID   string
	Kind       catalog.Kind
}

func RouteOf(evt domain.CatalogEvent) Route {
	return Route{
		EntityKind: evt.EntityKind(),
		EntityID:   evt.EntityID(),
		Kind:       evt.Kind(),
	}
}

// Resolve returns the rooms an event is delivered to. Every event reaches the
// admin room and the global feed; events about an existing product also reach
// that product's room. Unknown kinds panic.
func Resolve(r Route) []string {
	if r.EntityKind != domain.EntityProduct {
		panic(fmt.Sprintf("ws: no route for entity kind %q", r.EntityKind))
	}

	switch r.Kind {
	case catalog.Created:
		return []string{catalog.GlobalRoom, catalog.AdminRoom}
	case catalog.Updated, catalog.Deleted, catalog.StockChanged:
		room := catalog.ProductRoom(r.EntityID)
		if _, _, err := catalog.ParseRoom(room); err != nil {
			panic(fmt.Sprintf("ws: no route for %s event with product id %q", r.Kind, r.EntityID))
		}
		return []string{catalog.GlobalRoom, room, catalog.AdminRoom}
	}

	panic(fmt.Sprintf("ws: no route for mutation kind %q", string(r.Kind)))
}
