package storage_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NorthgateLabs/livechat_svc/internal/model"
	"github.com/NorthgateLabs/livechat_svc/internal/storage"
)

func TestOpenDatabaseRejectsMissingDriverName(t *testing.T) {
	_, openErr := storage.OpenDatabase(storage.Config{DataSourceName: "file::memory:"})
	require.ErrorIs(t, openErr, storage.ErrMissingDatabaseDriverName)
}

func TestOpenDatabaseRejectsUnsupportedDriver(t *testing.T) {
	_, openErr := storage.OpenDatabase(storage.Config{DriverName: "oracle", DataSourceName: "dsn"})
	require.ErrorIs(t, openErr, storage.ErrUnsupportedDatabaseDriver)
}

func TestOpenDatabaseRejectsMissingDataSourceName(t *testing.T) {
	_, openErr := storage.OpenDatabase(storage.Config{DriverName: storage.DriverNameSQLite})
	require.ErrorIs(t, openErr, storage.ErrMissingDataSourceName)
}

func TestAutoMigrateCreatesChatTables(t *testing.T) {
	dataSourceName := fmt.Sprintf("file:%s?mode=memory&cache=shared", storage.NewID())
	database, openErr := storage.OpenDatabase(storage.Config{
		DriverName:     storage.DriverNameSQLite,
		DataSourceName: dataSourceName,
	})
	require.NoError(t, openErr)
	require.NoError(t, storage.AutoMigrate(database))

	for _, value := range []any{
		&model.Website{}, &model.Thread{}, &model.Guest{},
		&model.Message{}, &model.Attachment{}, &model.TypingState{},
	} {
		require.True(t, database.Migrator().HasTable(value))
	}
}

func TestNewIDProducesUniqueValues(t *testing.T) {
	seen := map[string]bool{}
	for index := 0; index < 64; index++ {
		identifier := storage.NewID()
		require.NotEmpty(t, identifier)
		require.False(t, seen[identifier])
		seen[identifier] = true
	}
}
