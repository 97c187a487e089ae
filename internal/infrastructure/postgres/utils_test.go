package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/dte-sync/internal/domain"
)

func TestUniqueViolationError(t *testing.T) {
	wrap := func(constraint string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505", ConstraintName: constraint})
	}
	assert.ErrorIs(t, uniqueViolationError(wrap(idxNaturalKey)), domain.ErrDuplicateNaturalKey)
	assert.ErrorIs(t, uniqueViolationError(wrap(idxActivePOSLink)), domain.ErrAlreadyConverted)
	assert.ErrorIs(t, uniqueViolationError(wrap(idxActiveCostLink)), domain.ErrAlreadyConverted)
	assert.ErrorIs(t, uniqueViolationError(wrap(idxExternalSale)), domain.ErrDuplicateSale)
	assert.ErrorIs(t, uniqueViolationError(wrap("otro")), domain.ErrConflict)

	assert.Nil(t, uniqueViolationError(&pgconn.PgError{Code: "23503"}))
	assert.Nil(t, uniqueViolationError(errors.New("conexión rechazada")))
}

func TestJSONBOrNil(t *testing.T) {
	assert.Nil(t, jsonbOrNil(nil))
	assert.Nil(t, jsonbOrNil([]byte("  ")))
	assert.Equal(t, []byte(`{"folio":1}`), jsonbOrNil([]byte(` {"folio":1} `)))
	assert.Equal(t, []byte(`"Bad Gateway"`), jsonbOrNil([]byte("Bad Gateway")))
}

func TestMigrationsEmbebidas(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir(migrationsDir)
	assert.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_dte_schema.up.sql")
	assert.Contains(t, names, "000001_dte_schema.down.sql")

	up, err := embeddedMigrations.ReadFile(migrationsDir + "/000001_dte_schema.up.sql")
	assert.NoError(t, err)
	for _, idx := range []string{idxNaturalKey, idxActivePOSLink, idxActiveCostLink, idxExternalSale} {
		assert.Contains(t, string(up), idx)
	}
}
