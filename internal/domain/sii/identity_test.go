package sii_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/dte-sync/internal/domain"
	"github.com/jhoicas/dte-sync/internal/domain/sii"
)

func decodeSale(t *testing.T, raw string) sii.RawSale {
	t.Helper()
	var s sii.RawSale
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s
}

func TestResolveSaleID_Precedencia(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"id", `{"id":"A1","transactionId":"T1","saleId":"S1"}`, "A1"},
		{"id numérico", `{"id":12345}`, "12345"},
		{"id vacío cae a transactionId", `{"id":"","transactionId":"T1","saleId":"S1"}`, "T1"},
		{"id nulo cae a saleId", `{"id":null,"saleId":"S1"}`, "S1"},
		{"providerSaleId", `{"id":"  ","providerSaleId":"P9"}`, "P9"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id, err := sii.ResolveSaleID(decodeSale(t, c.raw), sii.BatchContext{})
			require.NoError(t, err)
			assert.Equal(t, c.want, id)
		})
	}
}

func TestResolveSaleID_Compuesto(t *testing.T) {
	raw := decodeSale(t, `{
		"serialNumber": "POS001",
		"transactionDateTime": "2025-09-09T10:30:00Z",
		"totalAmount": 15000,
		"sequenceNumber": "SEQ001"
	}`)
	id, err := sii.ResolveSaleID(raw, sii.BatchContext{})
	require.NoError(t, err)
	assert.Equal(t, "POS0012025090910300015000SEQ001", id)

	again, err := sii.ResolveSaleID(raw, sii.BatchContext{})
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestResolveSaleID_SerialDelLote(t *testing.T) {
	raw := decodeSale(t, `{"transactionDateTime":"2025-09-09 10:30:00.123","totalAmount":"15000.0","sequenceNumber":7}`)
	id, err := sii.ResolveSaleID(raw, sii.BatchContext{SerialNumber: "CAJA2"})
	require.NoError(t, err)
	assert.Equal(t, "CAJA220250909103000150007", id)
}

func TestResolveSaleID_SinDatos(t *testing.T) {
	_, err := sii.ResolveSaleID(decodeSale(t, `{"status":"OK"}`), sii.BatchContext{})
	assert.ErrorIs(t, err, domain.ErrUnresolvableIdentity)
}

func TestSanitizeTimestamp(t *testing.T) {
	assert.Equal(t, "20250909103000", sii.SanitizeTimestamp("2025-09-09T10:30:00.999-03:00"))
	assert.Equal(t, "20250909", sii.SanitizeTimestamp("2025-09-09"))
	assert.Equal(t, "", sii.SanitizeTimestamp(""))
}

func TestFlexString_JSON(t *testing.T) {
	var v struct {
		A sii.FlexString `json:"a"`
		B sii.FlexString `json:"b"`
		C sii.FlexString `json:"c"`
		D sii.FlexString `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":42,"c":null}`), &v))
	assert.Equal(t, "x", v.A.String())
	assert.Equal(t, "42", v.B.String())
	assert.True(t, v.C.Empty())
	assert.False(t, v.D.Valid)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":"42","c":null,"d":null}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}
