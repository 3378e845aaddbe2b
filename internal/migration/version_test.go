package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestMigrationVersion(t *testing.T) {
	version, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(8), version)
}

func TestMigrationsChecksumDeterministic(t *testing.T) {
	a, err := MigrationsChecksum()
	require.NoError(t, err)
	b, err := MigrationsChecksum()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestParseMigrationVersion(t *testing.T) {
	v, ok := parseMigrationVersion("004_payments.up.sql")
	require.True(t, ok)
	assert.Equal(t, uint(4), v)

	_, ok = parseMigrationVersion("payments.up.sql")
	assert.False(t, ok)
}
