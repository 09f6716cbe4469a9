package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMoney(t *testing.T) {
	for _, s := range []string{"0", "10", "0.5", "19.99", "9999999999.99"} {
		assert.True(t, IsMoney(d(s)), s)
	}
	for _, s := range []string{"0.004", "1.005", "10000000000"} {
		assert.False(t, IsMoney(d(s)), s)
	}
}

func TestMoneyMarshalsAsNumber(t *testing.T) {
	data, err := json.Marshal(ShippingMethod{ID: "standard", Name: "Standard", Cost: d("5.5")})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"id":"standard","name":"Standard","cost":5.5}`, string(data))
}
