package catalog

import (
	"fmt"
	"strings"
)

// Kind is the mutation a domain event describes.
type Kind string

const (
	Created      Kind = "created"
	Updated      Kind = "updated"
	Deleted      Kind = "deleted"
	StockChanged Kind = "stock_changed"
)

// Kinds lists every mutation kind the feed carries.
var Kinds = []Kind{Created, Updated, Deleted, StockChanged}

// Control channels carry server replies that are not catalog events.
const (
	ConnectedChannel  = "connected"
	RoomJoinedChannel = "room-joined"
	RoomLeftChannel   = "room-left"
	PongChannel       = "pong"
	ErrorChannel      = "error"
)

const adminPrefix = "admin-"

// noun is the event part of a channel name as seen by the global feed and admins.
func (k Kind) noun() string {
	switch k {
	case Created:
		return "product-created"
	case Updated:
		return "product-updated"
	case Deleted:
		return "product-deleted"
	case StockChanged:
		return "stock-updated"
	}
	panic(fmt.Sprintf("catalog: unknown mutation kind %q", string(k)))
}

// detailNoun is the suffix used on product detail channels.
func (k Kind) detailNoun() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	case StockChanged:
		return "stock"
	}
	panic(fmt.Sprintf("catalog: unknown mutation kind %q", string(k)))
}

// ChannelName names the channel an event of kind k is delivered on inside room.
// The same event gets a different channel per audience so clients can key their
// handlers on the channel alone.
func ChannelName(room string, k Kind) string {
	scope, id, err := ParseRoom(room)
	if err != nil {
		panic(fmt.Sprintf("catalog: channel for invalid room %q", room))
	}

	switch scope {
	case ScopeGlobal:
		return k.noun()
	case ScopeAdmin:
		return adminPrefix + k.noun()
	default:
		return "product-" + id + "-" + k.detailNoun()
	}
}

// ParseChannel reverses ChannelName. ok is false for control channels and unknown
// names.
func ParseChannel(channel string) (scope Scope, k Kind, productID string, ok bool) {
	for _, kind := range Kinds {
		switch channel {
		case kind.noun():
			return ScopeGlobal, kind, "", true
		case adminPrefix + kind.noun():
			return ScopeAdmin, kind, "", true
		}
	}

	rest, found := strings.CutPrefix(channel, "product-")
	if !found {
		return "", "", "", false
	}
	for _, kind := range Kinds {
		id, found := strings.CutSuffix(rest, "-"+kind.detailNoun())
		if found && validProductID(id) {
			return ScopeProduct, kind, id, true
		}
	}

	return "", "", "", false
}
