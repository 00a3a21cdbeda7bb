package database

import (
	"context"
	"path/filepath"
	"ranked-bedwars/internal/domain"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_AppliesMigrations(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "rbw.db"), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "elos", "games", "recentgames", "gameschannels", "settings", "booster", "counters"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('recentgames') WHERE name = 'appliedelochange'`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestKeeper_Ensure(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "rbw.db"), zerolog.Nop())
	require.NoError(t, err)

	k := NewKeeper(db, zerolog.Nop())
	require.NoError(t, k.Ensure(context.Background()))

	require.NoError(t, db.Close())
	err = k.Ensure(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
