package sii_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/sii"
)

// checkSplit verifica la regla sin reutilizar la implementación: |100*total - 119*net| ≤ 59.5.
func checkSplit(t *testing.T, total int64) {
	t.Helper()
	net, tax := sii.SplitTaxInclusive(total, sii.DefaultTaxRate)
	require.Equal(t, total, net+tax, "total=%d", total)
	diff := 100*total - 119*net
	if diff < 0 {
		diff = -diff
	}
	require.LessOrEqual(t, 2*diff, int64(119), "total=%d net=%d", total, net)
}

func TestSplitTaxInclusive_VectoresConocidos(t *testing.T) {
	cases := []struct {
		total, net, tax int64
	}{
		{0, 0, 0},
		{1, 1, 0},
		{119, 100, 19},
		{1190, 1000, 190},
		{9000, 7563, 1437},
		{15000, 12605, 2395},
		{1_190_000, 1_000_000, 190_000},
	}
	for _, c := range cases {
		net, tax := sii.SplitTaxInclusive(c.total, sii.DefaultTaxRate)
		assert.Equal(t, c.net, net, "net de %d", c.total)
		assert.Equal(t, c.tax, tax, "tax de %d", c.total)
	}
}

func TestSplitTaxInclusive_ReglaDeRedondeo(t *testing.T) {
	for total := int64(0); total <= 20_000; total++ {
		checkSplit(t, total)
	}
	for total := int64(20_000); total <= 10_000_000; total += 7_919 {
		checkSplit(t, total)
	}
}

func TestProrateAdjustment_SumaExacta(t *testing.T) {
	shares := sii.ProrateAdjustment([]int64{7000, 1500}, 500)
	require.Len(t, shares, 2)
	assert.Equal(t, int64(411), shares[0])
	assert.Equal(t, int64(89), shares[1])
	assert.Equal(t, int64(500), shares[0]+shares[1])

	neg := sii.ProrateAdjustment([]int64{1000, 1000, 1000}, -100)
	assert.Equal(t, []int64{-33, -33, -34}, neg)

	assert.Equal(t, []int64{0, 250}, sii.ProrateAdjustment([]int64{0, 0}, 250))
	assert.Empty(t, sii.ProrateAdjustment(nil, 10))
}

func TestProrateAdjustment_DescuentoCasiTotal(t *testing.T) {
	bases := []int64{500, 500, 500}
	shares := sii.ProrateAdjustment(bases, -1499)
	assert.Equal(t, []int64{-499, -500, -500}, shares)

	lines := make([]sii.LineInput, len(bases))
	for i, b := range bases {
		lines[i] = sii.LineInput{Description: "x", Quantity: 1, UnitPrice: b, Adjustment: shares[i]}
	}
	items, totals, err := sii.ComputeLines(lines, sii.DefaultTaxRate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Total)
	for _, it := range items {
		assert.GreaterOrEqual(t, it.Total, int64(0))
	}

	// descuento total: todas las líneas en cero
	assert.Equal(t, []int64{-300, -100, -200}, sii.ProrateAdjustment([]int64{300, 100, 200}, -600))
}

func TestComputeLines_VentaConPropina(t *testing.T) {
	// 2 x 3500 + 1 x 1500 = 8500; el total informado es 9000.
	bases := []int64{7000, 1500}
	shares := sii.ProrateAdjustment(bases, 9000-8500)
	items, totals, err := sii.ComputeLines([]sii.LineInput{
		{Description: "Café", Quantity: 2, UnitPrice: 3500, Adjustment: shares[0]},
		{Description: "Medialuna", Quantity: 1, UnitPrice: 1500, Adjustment: shares[1]},
	}, sii.DefaultTaxRate)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, int64(9000), totals.Total)
	assert.Equal(t, totals.Total, totals.Net+totals.Tax)
	assert.Equal(t, int64(0), totals.Exempt)
	var sum int64
	for i, it := range items {
		assert.Equal(t, i+1, it.LineNumber)
		assert.Equal(t, it.Total, it.Net+it.Tax)
		sum += it.Total
	}
	assert.Equal(t, int64(9000), sum)
}

func TestComputeLines_Exentas(t *testing.T) {
	items, totals, err := sii.ComputeLines([]sii.LineInput{
		{Description: "Afecto", Quantity: 1, UnitPrice: 1190},
		{Description: "Exento", Quantity: 3, UnitPrice: 100, Exempt: true},
	}, sii.DefaultTaxRate)
	require.NoError(t, err)
	assert.Equal(t, int64(300), items[1].Net)
	assert.Equal(t, int64(0), items[1].Tax)
	assert.True(t, items[1].TaxRate.Equal(decimal.Zero))
	assert.Equal(t, sii.Totals{Net: 1300, Tax: 190, Exempt: 300, Total: 1490}, totals)
	assert.False(t, sii.AllExempt(items))
	assert.True(t, sii.AllExempt(items[1:]))
}

func TestComputeLines_Invalidas(t *testing.T) {
	_, _, err := sii.ComputeLines(nil, sii.DefaultTaxRate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = sii.ComputeLines([]sii.LineInput{{Description: "x", Quantity: 0, UnitPrice: 10}}, sii.DefaultTaxRate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = sii.ComputeLines([]sii.LineInput{{Description: "x", Quantity: 1, UnitPrice: 10, Adjustment: -11}}, sii.DefaultTaxRate)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
