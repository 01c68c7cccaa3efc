package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFixedWeight("S1", map[string]decimal.Decimal{"2330": decimal.NewFromInt(2)}))
	r.Register(NewFixedWeight("S2", nil))

	e, err := r.Resolve("S1")
	require.NoError(t, err)
	assert.Equal(t, "S1", e.Name())

	_, err = r.Resolve("nope")
	assert.ErrorContains(t, err, `unknown strategy "nope"`)

	assert.Equal(t, []string{"S1", "S2"}, r.Names())
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFixedWeight("S1", nil))
	assert.Panics(t, func() { r.Register(NewFixedWeight("S1", nil)) })
}

func TestFixedWeightReturnsCopy(t *testing.T) {
	e := NewFixedWeight("S1", map[string]decimal.Decimal{"2330": decimal.NewFromInt(2)})

	first, err := e.ComputeTargetPortfolio(context.Background(), time.Now())
	require.NoError(t, err)
	first["2330"] = decimal.NewFromInt(99)

	second, err := e.ComputeTargetPortfolio(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, second.Quantity("2330").Equal(decimal.NewFromInt(2)), "mutating a returned book must not leak into the engine")
}
