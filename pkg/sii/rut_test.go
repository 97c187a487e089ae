package sii_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/dte-sync/pkg/sii"
)

func TestComputeDV_VectoresConocidos(t *testing.T) {
	cases := map[int64]byte{
		76795561: '8',
		66666666: '6',
		11111111: '1',
		12345678: '5',
	}
	for number, dv := range cases {
		assert.Equal(t, string(dv), string(sii.ComputeDV(number)), "RUT %d", number)
	}
}

func TestParseRUT_Formatos(t *testing.T) {
	for _, in := range []string{"76.795.561-8", "76795561-8", "767955618", " 76795561-8 "} {
		rut, err := sii.ParseRUT(in)
		require.NoError(t, err, in)
		assert.Equal(t, int64(76795561), rut.Number)
		assert.Equal(t, "76795561-8", rut.String())
	}
}

func TestParseRUT_DigitoVerificadorInvalido(t *testing.T) {
	_, err := sii.ParseRUT("76795561-9")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dígito verificador")
}

func TestParseRUT_Entradas_Invalidas(t *testing.T) {
	for _, in := range []string{"", "8", "K-K", "abc"} {
		_, err := sii.ParseRUT(in)
		assert.Error(t, err, "%q debe ser rechazado", in)
	}
}

func TestParseRUT_DVConK(t *testing.T) {
	var number int64 = 1
	for sii.ComputeDV(number) != 'K' {
		number++
	}
	rut, err := sii.ParseRUT(fmt.Sprintf("%d-k", number))
	require.NoError(t, err)
	assert.Equal(t, byte('K'), rut.DV)
}

func TestRUT_String(t *testing.T) {
	rut, err := sii.ParseRUT("76.795.561-8")
	require.NoError(t, err)
	assert.Equal(t, "76795561-8", rut.String())
}
