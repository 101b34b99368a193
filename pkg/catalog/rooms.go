// Package catalog holds the wire contract of the real-time catalog feed shared by
// the server and its clients: room names, channel names, and message shapes.
package catalog

import (
	"errors"
	"strings"
	"unicode"
)

const (
	GlobalRoom = "global"
	AdminRoom  = "admin"

	productRoomPrefix = "product:"
	maxProductIDLen   = 128
)

var ErrInvalidRoom = errors.New("invalid room name")

// Scope is the audience a room represents.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProduct Scope = "product"
	ScopeAdmin   Scope = "admin"
)

// ProductRoom returns the room of shoppers viewing one product.
func ProductRoom(productID string) string {
	return productRoomPrefix + productID
}

// ParseRoom validates a room name and returns its scope and, for product rooms, the
// product id.
func ParseRoom(name string) (Scope, string, error) {
	switch name {
	case GlobalRoom:
		return ScopeGlobal, "", nil
	case AdminRoom:
		return ScopeAdmin, "", nil
	}

	id, ok := strings.CutPrefix(name, productRoomPrefix)
	if !ok || !validProductID(id) {
		return "", "", ErrInvalidRoom
	}

	return ScopeProduct, id, nil
}

func validProductID(id string) bool {
	if id == "" || len(id) > maxProductIDLen {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || r == ':' {
			return false
		}
	}
	return true
}
