package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/fitsuite/licensehub/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestRunAutoMigratesNonPostgres(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, Run(conn))
	require.NoError(t, Run(conn))

	for _, table := range []string{"licenses", "processed_payments", "referral_configs", "inbox_messages", "orders"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestEmbeddedSQLCoversEveryModel(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, "migrations/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	for _, m := range Models() {
		tabler, ok := m.(schema.Tabler)
		require.True(t, ok, "%T has no table name", m)
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+tabler.TableName()+" ("), tabler.TableName())
	}
}
