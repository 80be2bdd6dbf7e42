package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_Scan(t *testing.T) {
	var m JSONMap

	require.NoError(t, m.Scan([]byte(`{"org_name":"Red Cross Cebu"}`)))
	assert.Equal(t, "Red Cross Cebu", m.GetString("org_name"))

	require.NoError(t, m.Scan(nil))
	assert.Empty(t, m)

	assert.ErrorIs(t, m.Scan(42), ErrScanValueNotBytes)
}

func TestJSONMap_Value(t *testing.T) {
	m := JSONMap{}
	m.SetIfNotEmpty("contact", "")
	m.SetIfNotEmpty("address", "Cebu City")

	v, err := m.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"Cebu City"}`, string(v.([]byte)))

	v, err = JSONMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}
