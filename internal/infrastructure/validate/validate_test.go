package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestField(t *testing.T) {
	v := Field("name", Required(), MaxLength(5))

	assert.NoError(t, v("kopi"))
	assert.EqualError(t, v(" "), "name: this field is required")
	assert.EqualError(t, v("kopi toraja"), "name: must be no more than 5 characters")
}

func TestHTTPURL(t *testing.T) {
	v := HTTPURL()

	assert.NoError(t, v(""))
	assert.NoError(t, v("https://cdn.toko.example/kopi.png"))
	assert.Error(t, v("ftp://cdn.toko.example/kopi.png"))
	assert.Error(t, v("kopi.png"))
}

func TestNonNegative(t *testing.T) {
	assert.NoError(t, NonNegative("stock", int64(0)))
	assert.EqualError(t, NonNegative("price", -0.5), "price: must not be negative")
}
