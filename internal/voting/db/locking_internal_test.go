package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-voting/internal/database"
	"ms-voting/internal/models"
)

func TestForUpdate_ByDialect(t *testing.T) {
	sqldb, err := sql.Open("postgres", "postgres://voting@localhost/voting?sslmode=disable")
	require.NoError(t, err)
	pg := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { pg.Close() })

	lite, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { lite.Close() })

	pgQuery := forUpdate(pg, pg.NewSelect().Model((*models.Ticket)(nil)).Where("id = ?", 1).Limit(1))
	assert.Contains(t, pgQuery.String(), "FOR UPDATE")
	assert.True(t, lockingSupported(pg))

	liteQuery := forUpdate(lite, lite.NewSelect().Model((*models.Ticket)(nil)).Where("id = ?", 1).Limit(1))
	assert.NotContains(t, liteQuery.String(), "FOR UPDATE")
	assert.False(t, lockingSupported(lite))
}
