package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_Idempotent(t *testing.T) {
	h, err := OpenAt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Migrate(), "iteration %d", i)
	}
	for _, m := range []any{&RecentMO{}, &ProductionLog{}, &ManufacturingIdentity{}, &AuthenticityUsedRM{}, &MasterAuthenticityVendor{}} {
		assert.True(t, h.DB.Migrator().HasTable(m))
	}
	assert.True(t, h.DB.Migrator().HasIndex(&AuthenticityUsedRM{}, "uniq_used_rm"))
	assert.True(t, h.DB.Migrator().HasIndex(&MasterAuthenticityVendor{}, "uniq_vendor_roll_auth"))
}

func TestMigrate_DedupesLegacyLedger(t *testing.T) {
	h, err := OpenAt(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	// legacy table without the unique index
	require.NoError(t, h.DB.Exec(`CREATE TABLE authenticity_used_rm (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transfer_id INTEGER NOT NULL,
		authenticity TEXT NOT NULL,
		transfer_date TEXT,
		created_at TEXT)`).Error)
	require.NoError(t, h.DB.Exec(`INSERT INTO authenticity_used_rm (transfer_id, authenticity) VALUES (1,'A'),(1,'A'),(1,'B'),(2,'A')`).Error)

	require.NoError(t, h.Migrate())

	var n int64
	require.NoError(t, h.DB.Model(&AuthenticityUsedRM{}).Count(&n).Error)
	assert.Equal(t, int64(3), n)

	var keep []AuthenticityUsedRM
	require.NoError(t, h.DB.Order("id").Find(&keep).Error)
	assert.Equal(t, uint(1), keep[0].ID)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}
