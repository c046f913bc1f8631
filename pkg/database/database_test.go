package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/datashare-api/pkg/config"
)

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	db, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`))
	assert.Equal(t, []string{"approval_events", "organizations", "transactions"}, tables)
}

func TestSQLiteLedgerIsAppendOnly(t *testing.T) {
	db, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))

	now := time.Now().UTC()
	_, err = db.Exec(`INSERT INTO transactions (id, status, consumer_org_id, subject_org_id, holder_org_id, asset_id, purpose, justification, access_duration_days, created_at, updated_at)
		VALUES ('tx-1', 'pending_holder', 'c', 's', 'h', 'a', 'p', 'j', 30, ?, ?)`, now, now)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO approval_events (id, transaction_id, seq, actor_org_id, actor_user_id, actor_role, action, from_status, to_status, created_at)
		VALUES ('ev-1', 'tx-1', 1, 's', 'u', 'subject', 'pre_approve', 'initiated', 'pending_holder', ?)`, now)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE approval_events SET notes = 'edited' WHERE id = 'ev-1'`)
	assert.Error(t, err)
	_, err = db.Exec(`DELETE FROM approval_events WHERE id = 'ev-1'`)
	assert.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
