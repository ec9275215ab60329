package service

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
	"github.com/mangue-baja/telemetry-service-go/pkg/repository/session"
	"github.com/mangue-baja/telemetry-service-go/pkg/repository/telemetry"
)

// TelemetryService is the narrow save/query surface the pipeline consumes.
type TelemetryService struct {
	pool *pgxpool.Pool
}

func InitTelemetryService(pool *pgxpool.Pool) *TelemetryService {
	return &TelemetryService{pool: pool}
}

// StartSession creates and persists a fresh session.
func (s *TelemetryService) StartSession(ctx context.Context, label string) (*model.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("create session id: %w", err)
	}
	sess := &model.Session{ID: id, StartedAt: time.Now(), Label: label}
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return session.Create(ctx, tx.Conn(), sess)
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *TelemetryService) SaveSample(
	ctx context.Context,
	sessionID uuid.UUID,
	sample *model.EnrichedSample,
) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return telemetry.Create(ctx, tx.Conn(), sessionID, sample)
	})
}

func (s *TelemetryService) RecentSamples(
	ctx context.Context,
	sessionID uuid.UUID,
	limit int,
) ([]*model.EnrichedSample, error) {
	var ret []*model.EnrichedSample
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		ret, err = telemetry.LoadBySession(ctx, tx.Conn(), sessionID, limit)
		return err
	})
	return ret, err
}
