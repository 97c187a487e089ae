package sii

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexString valor JSON que los proveedores envían a veces como texto y a veces como número
// (folios, identificadores de venta, montos). Conserva si el campo vino presente.
type FlexString struct {
	Value string
	Valid bool
}

// NewFlexString construye un valor presente.
func NewFlexString(s string) FlexString {
	return FlexString{Value: s, Valid: true}
}

func (f *FlexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*f = FlexString{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString{Value: s, Valid: true}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("sii: valor %s no es texto ni número", raw)
	}
	*f = FlexString{Value: n.String(), Valid: true}
	return nil
}

func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// String devuelve el valor sin espacios en los extremos.
func (f FlexString) String() string {
	return strings.TrimSpace(f.Value)
}

// Empty es verdadero si el campo faltó, vino nulo o vacío.
func (f FlexString) Empty() bool {
	return f.String() == ""
}
