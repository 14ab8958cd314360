package routeserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IXScan/internal/config"
	"IXScan/internal/model"
)

func TestNewTable(t *testing.T) {
	table, err := NewTable([]model.RouteServer{
		{ASN: 99, Name: "Test-IX"},
		{ASN: 6695, Name: "DE-CIX Frankfurt"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.True(t, table.Contains(99))
	assert.False(t, table.Contains(100))

	name, ok := table.Label(6695)
	assert.True(t, ok)
	assert.Equal(t, "DE-CIX Frankfurt", name)

	_, ok = table.Label(1)
	assert.False(t, ok)

	all := table.All()
	require.Len(t, all, 2)
	assert.Equal(t, model.ASN(99), all[0].ASN)
	assert.Equal(t, model.ASN(6695), all[1].ASN)
}

func TestNewTable_RejectsDuplicates(t *testing.T) {
	_, err := NewTable([]model.RouteServer{
		{ASN: 33108, Name: "SIX"},
		{ASN: 8714, Name: "LINX"},
		{ASN: 33108, Name: "SIX"},
	})
	assert.ErrorIs(t, err, ErrDuplicateASN)
}

func TestNewTable_RejectsInvalid(t *testing.T) {
	_, err := NewTable([]model.RouteServer{{ASN: 0, Name: "zero"}})
	assert.ErrorIs(t, err, ErrInvalidEntry)

	_, err = NewTable([]model.RouteServer{{ASN: 1}})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestDefaultsAreValid(t *testing.T) {
	table, err := FromConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, len(Defaults), table.Len())
	assert.True(t, table.Contains(33108))
}

func TestFromConfig(t *testing.T) {
	table, err := FromConfig([]config.RouteServerDef{{ASN: 99, Name: "Test-IX"}})
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	assert.False(t, table.Contains(6695))
}
