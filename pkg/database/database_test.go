package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcpos/siteconnect/pkg/models"
)

func TestConnectSQLiteMigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.db")

	db, err := Connect(context.Background(), Config{Driver: DriverSQLite, Path: path}, hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	assert.True(t, db.Migrator().HasTable(&models.ConnectionProfile{}))
	assert.True(t, db.Migrator().HasIndex(&models.ConnectionProfile{}, "UUID"))
}

func TestConnectSQLiteSingleConnection(t *testing.T) {
	db, err := Connect(context.Background(), Config{Driver: DriverSQLite, Path: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	stats, err := GetPoolStats(db)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
}

func TestConnectRequiresSQLitePath(t *testing.T) {
	_, err := Connect(context.Background(), Config{Driver: DriverSQLite}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect(context.Background(), Config{Driver: "mysql"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "defaults sslmode to disable",
			cfg:  Config{Host: "localhost", Port: 5432, User: "postgres", Password: "secret", DBName: "siteconnect"},
			want: "host=localhost port=5432 user=postgres password=secret dbname=siteconnect sslmode=disable",
		},
		{
			name: "keeps explicit sslmode",
			cfg:  Config{Host: "db", Port: 6543, User: "u", Password: "p", DBName: "d", SSLMode: "require"},
			want: "host=db port=6543 user=u password=p dbname=d sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.DSN())
		})
	}
}
