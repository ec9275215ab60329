//nolint:errcheck,funlen // ok for this test code
package telemetry

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
	"github.com/mangue-baja/telemetry-service-go/pkg/repository/session"
	tcpg "github.com/mangue-baja/telemetry-service-go/testsupport/tcpostgres"
)

func initTestDb() *pgxpool.Pool {
	pool := tcpg.SetupTestDb()
	tcpg.ClearAllTables(pool)
	return pool
}

func createSampleSession(db *pgxpool.Pool) *model.Session {
	id, _ := uuid.NewV7()
	sess := &model.Session{ID: id, StartedAt: time.Now(), Label: "test"}
	err := pgx.BeginFunc(context.Background(), db, func(tx pgx.Tx) error {
		return session.Create(context.Background(), tx.Conn(), sess)
	})
	if err != nil {
		log.Fatalf("createSampleSession: %v\n", err)
	}
	return sess
}

func sampleEntry(ts uint32) *model.EnrichedSample {
	return &model.EnrichedSample{
		TelemetrySample: model.TelemetrySample{
			AccX: 0.061, AccY: -0.061, AccZ: 1.0,
			DpsX: 7, DpsY: -7, DpsZ: 14,
			Roll: 150, Pitch: -75, RPM: 3500, Speed: 42,
			MotorTemp: 90, SOC: 87, CVTTemp: 78.5,
			Volt: 12.6, Current: 12, Flags: 1,
			Latitude: -8.05428, Longitude: -34.8813,
			Timestamp: ts,
		},
		LapCount:       2,
		CurrentLapTime: 4500,
		BestLapTime:    31000,
		LastLapTime:    32500,
		TotalDistance:  2100.5,
		LapDistance:    350.25,
	}
}

func createSampleEntries(db *pgxpool.Pool, sessionID uuid.UUID, n int) {
	err := pgx.BeginFunc(context.Background(), db, func(tx pgx.Tx) error {
		for i := 0; i < n; i++ {
			if err := Create(context.Background(), tx.Conn(), sessionID,
				sampleEntry(uint32(1000*(i+1)))); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("createSampleEntries: %v\n", err)
	}
}

func TestTelemetryRepository_Create(t *testing.T) {
	db := initTestDb()
	sess := createSampleSession(db)
	createSampleEntries(db, sess.ID, 1)
}

func TestTelemetryRepository_LoadBySession(t *testing.T) {
	db := initTestDb()
	sess := createSampleSession(db)
	createSampleEntries(db, sess.ID, 5)

	err := pgx.BeginFunc(context.Background(), db, func(tx pgx.Tx) error {
		got, err := LoadBySession(context.Background(), tx.Conn(), sess.ID, 3)
		if err != nil {
			return err
		}
		assert.Len(t, got, 3)
		// newest first
		assert.Equal(t, uint32(5000), got[0].Timestamp)
		assert.Equal(t, uint32(4000), got[1].Timestamp)
		// round trip of the value columns
		assert.Equal(t, 42.0, got[0].Speed)
		assert.Equal(t, uint8(1), got[0].Flags)
		assert.Equal(t, 2, got[0].LapCount)
		assert.Equal(t, 31000.0, got[0].BestLapTime)
		assert.Equal(t, -8.05428, got[0].Latitude)
		return nil
	})
	assert.NoError(t, err)
}

func TestTelemetryRepository_LoadBySession_Empty(t *testing.T) {
	db := initTestDb()
	sess := createSampleSession(db)

	err := pgx.BeginFunc(context.Background(), db, func(tx pgx.Tx) error {
		got, err := LoadBySession(context.Background(), tx.Conn(), sess.ID, 10)
		if err != nil {
			return err
		}
		assert.Empty(t, got)
		return nil
	})
	assert.NoError(t, err)
}

func TestTelemetryRepository_DeleteBySession(t *testing.T) {
	db := initTestDb()
	sess := createSampleSession(db)
	createSampleEntries(db, sess.ID, 4)

	err := pgx.BeginFunc(context.Background(), db, func(tx pgx.Tx) error {
		num, err := DeleteBySession(context.Background(), tx.Conn(), sess.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, 4, num)
		return nil
	})
	assert.NoError(t, err)
}
