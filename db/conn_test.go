package db

import (
	"bytes"
	"testing"
	"time"

	"bitwise74/beacon-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestWithForeignKeys(t *testing.T) {
	assert.Equal(t, "file:database.db?_foreign_keys=on", withForeignKeys("database.db"))
	assert.Equal(t, "file:x?mode=memory&_foreign_keys=on", withForeignKeys("file:x?mode=memory"))
	assert.Equal(t, "file:x?_fk=1", withForeignKeys("file:x?_fk=1"))
}

func TestSqlitePath(t *testing.T) {
	assert.Equal(t, "/app/database.db", sqlitePath("file:/app/database.db?cache=shared"))
	assert.Equal(t, "database.db", sqlitePath("database.db"))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New("mysql", "")
	assert.Error(t, err)
}

func TestDeletingBeaconCascades(t *testing.T) {
	conn, err := New(DriverSQLite, "file:cascade?mode=memory&cache=shared")
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	b := model.Beacon{StatsPublic: true}
	require.NoError(t, conn.Create(&b).Error)
	require.NotEmpty(t, b.ID)

	identity := "abc"
	require.NoError(t, conn.Create(&model.BeaconEvent{BeaconID: b.ID, OpenedAt: time.Now(), Phase: model.PhaseOpen}).Error)
	require.NoError(t, conn.Create(&model.BeaconCreator{BeaconID: b.ID, ClientIdentity: &identity, CreatedAt: time.Now()}).Error)

	require.NoError(t, conn.Delete(&model.Beacon{ID: b.ID}).Error)

	var events, creators int64
	require.NoError(t, conn.Model(&model.BeaconEvent{}).Where("beacon_id = ?", b.ID).Count(&events).Error)
	require.NoError(t, conn.Model(&model.BeaconCreator{}).Where("beacon_id = ?", b.ID).Count(&creators).Error)

	assert.Zero(t, events)
	assert.Zero(t, creators)
}

func TestCreatorLanguagesRoundTrip(t *testing.T) {
	conn, err := New(DriverSQLite, "file:languages?mode=memory&cache=shared")
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	b := model.Beacon{StatsPublic: true}
	require.NoError(t, conn.Create(&b).Error)

	a, c := "a", "c"
	withLangs := model.BeaconCreator{BeaconID: b.ID, ClientIdentity: &a, CreatedAt: time.Now(), Languages: model.LanguageList{"en-US", "de"}}
	without := model.BeaconCreator{BeaconID: b.ID, ClientIdentity: &c, CreatedAt: time.Now()}
	require.NoError(t, conn.Create(&withLangs).Error)
	require.NoError(t, conn.Create(&without).Error)

	var got []model.BeaconCreator
	require.NoError(t, conn.Order("id").Find(&got).Error)
	require.Len(t, got, 2)
	assert.Equal(t, model.LanguageList{"en-US", "de"}, got[0].Languages)
	assert.Nil(t, got[1].Languages)
}

func TestLoggerSkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer

	conn, err := gorm.Open(sqlite.Open("file:logger?mode=memory&cache=shared"), &gorm.Config{Logger: newLogger(&buf)})
	require.NoError(t, err)
	require.NoError(t, Migrate(conn))

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	buf.Reset()

	var b model.Beacon
	err = conn.Where("id = ?", "9b2d1f64-8d8e-4c7c-9a51-2f9f0f1e3b11").First(&b).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String())

	// Real failures are still reported
	conn.Exec("SELECT * FROM missing_table")
	assert.Contains(t, buf.String(), "missing_table")
}
