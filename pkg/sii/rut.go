package sii

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// RUT es el Rol Único Tributario chileno: cuerpo numérico + dígito verificador (0-9 o K).
type RUT struct {
	Number int64
	DV     byte
}

// String devuelve el RUT en formato canónico sin puntos: "76795561-8".
func (r RUT) String() string {
	return fmt.Sprintf("%d-%c", r.Number, r.DV)
}

// ParseRUT acepta "76.795.561-8", "76795561-8" o "767955618" y valida el dígito verificador.
func ParseRUT(s string) (RUT, error) {
	clean := make([]rune, 0, len(s))
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if unicode.IsDigit(r) || r == 'K' {
			clean = append(clean, r)
		}
	}
	if len(clean) < 2 {
		return RUT{}, fmt.Errorf("sii: RUT %q demasiado corto", s)
	}
	body := string(clean[:len(clean)-1])
	dv := byte(clean[len(clean)-1])
	if strings.ContainsRune(body, 'K') {
		return RUT{}, fmt.Errorf("sii: RUT %q tiene 'K' fuera del dígito verificador", s)
	}
	number, err := strconv.ParseInt(body, 10, 64)
	if err != nil || number <= 0 {
		return RUT{}, fmt.Errorf("sii: cuerpo de RUT inválido en %q", s)
	}
	if expected := ComputeDV(number); expected != dv {
		return RUT{}, fmt.Errorf("sii: dígito verificador inválido para %q: esperado %c, recibido %c", s, expected, dv)
	}
	return RUT{Number: number, DV: dv}, nil
}

// ComputeDV calcula el dígito verificador módulo 11 (pesos 2..7 de derecha a izquierda).
func ComputeDV(number int64) byte {
	sum, weight := int64(0), int64(2)
	for n := number; n > 0; n /= 10 {
		sum += (n % 10) * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch r := 11 - sum%11; r {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + r)
	}
}
