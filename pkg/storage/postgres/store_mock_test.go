package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bukget/pkg/catalog"
	"github.com/platinummonkey/bukget/pkg/stats"
	"github.com/platinummonkey/bukget/pkg/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(NewConnectionManagerFromDB(storage.DriverPostgres, db), nil), mock
}

func TestStore_QueryErrors(t *testing.T) {
	boom := errors.New("connection reset")
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		call  func(s *Store) error
	}{
		{
			name:  "list plugins",
			query: "FROM plugins p",
			call: func(s *Store) error {
				_, err := s.ListPlugins(ctx, catalog.PluginQuery{})
				return err
			},
		},
		{
			name:  "get plugin",
			query: "FROM plugins p",
			call: func(s *Store) error {
				_, err := s.GetPlugin(ctx, "bukkit", "worldedit")
				return err
			},
		},
		{
			name:  "list authors",
			query: "FROM plugin_authors",
			call: func(s *Store) error {
				_, err := s.ListAuthors(ctx)
				return err
			},
		},
		{
			name:  "list generations",
			query: "FROM generations",
			call: func(s *Store) error {
				_, err := s.ListGenerations(ctx, 1)
				return err
			},
		},
		{
			name:  "daily totals",
			query: "FROM download_stats_daily",
			call: func(s *Store) error {
				_, err := s.DailyTotals(ctx, "2024-03-01", "2024-03-10")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			mock.ExpectQuery(tt.query).WillReturnError(boom)

			err := tt.call(store)
			assert.ErrorIs(t, err, boom)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_GetPluginNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM plugins p").
		WithArgs("bukkit", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"server", "slug"}))

	_, err := store.GetPlugin(context.Background(), "bukkit", "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListPluginsScanError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM plugins p").
		WillReturnRows(sqlmock.NewRows([]string{"server"}).AddRow("bukkit"))

	_, err := store.ListPlugins(context.Background(), catalog.PluginQuery{})
	assert.ErrorContains(t, err, "failed to scan plugin")
}

func TestStore_UpsertPluginRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO plugins").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM plugin_authors").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM plugin_categories").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM versions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO plugin_authors").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := store.UpsertPlugin(context.Background(), &catalog.Plugin{Server: "bukkit", Slug: "worldedit", Authors: []string{"sk89q"}})
	assert.ErrorContains(t, err, "plugin_authors")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RecordDownloadError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO downloads").
		WithArgs(sqlmock.AnyArg(), "bukkit", "worldedit", "latest", int64(1710084600)).
		WillReturnError(errors.New("disk full"))

	err := store.RecordDownload(context.Background(), stats.Download{
		Server:  "bukkit",
		Slug:    "worldedit",
		Version: "latest",
		At:      time.Date(2024, time.March, 10, 15, 30, 0, 0, time.UTC),
	})
	assert.ErrorContains(t, err, "failed to insert download")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RollupCommitError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM download_stats_daily").WithArgs("2024-03-10").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO download_stats_daily").
		WithArgs("2024-03-10", int64(1710028800), int64(1710115200)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	_, err := store.RollupDownloads(context.Background(), "2024-03-10")
	assert.ErrorContains(t, err, "failed to commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_StopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS generations").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), db, nil)
	assert.ErrorContains(t, err, "failed to execute migration 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
