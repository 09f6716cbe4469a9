package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func TestDecodeCartState_LegacyArray(t *testing.T) {
	st, err := decodeCartState([]byte(`[{"productId":"p1","productTitle":"Mug","productPrice":10,"quantity":2,"selectedVariations":{},"selectedAddons":[]}]`))
	require.NoError(t, err)
	assert.Equal(t, domain.CartSchemaVersion, st.Schema)
	assert.Equal(t, int64(0), st.Version)
	require.Len(t, st.Items, 1)
	assert.Equal(t, 2, st.Items[0].Quantity)
}

func TestDecodeCartState_Tagged(t *testing.T) {
	st, err := decodeCartState([]byte(`{"schema":1,"version":7,"items":[{"productId":"p1","productPrice":"3.5","quantity":1}]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), st.Version)
	require.Len(t, st.Items, 1)
	assert.Equal(t, "3.5", st.Items[0].ProductPrice.String())
}

func TestDecodeCartState_Errors(t *testing.T) {
	for name, raw := range map[string]string{
		"truncated":       `{"schema":1,"version":`,
		"future schema":   `{"schema":9,"version":1,"items":[]}`,
		"garbage array":   `[1,2`,
		"wrong item type": `{"schema":1,"items":"nope"}`,
	} {
		t.Run(name, func(t *testing.T) {
			st, err := decodeCartState([]byte(raw))
			assert.ErrorIs(t, err, ErrCorruptState)
			assert.Empty(t, st.Items)
			assert.Equal(t, int64(0), storedVersion([]byte(raw)))
		})
	}
}

func TestEncodeCartState_AlwaysTagged(t *testing.T) {
	data, err := encodeCartState(CartState{Version: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"schema":1,"version":3,"items":[]}`, string(data))
}
