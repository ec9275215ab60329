package session

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
)

func Create(ctx context.Context, conn *pgx.Conn, sess *model.Session) error {
	_, err := conn.Exec(ctx,
		"insert into sessions (id, started_at, label) values ($1,$2,$3)",
		sess.ID, sess.StartedAt, sess.Label)
	return err
}

func LoadByID(ctx context.Context, conn *pgx.Conn, id uuid.UUID) (*model.Session, error) {
	row := conn.QueryRow(ctx,
		selector+" where id=$1", id)
	var item model.Session
	if err := row.Scan(&item.ID, &item.StartedAt, &item.Label); err != nil {
		return nil, err
	}
	return &item, nil
}

func LoadLatest(ctx context.Context, conn *pgx.Conn) (*model.Session, error) {
	row := conn.QueryRow(ctx,
		selector+" order by started_at desc limit 1")
	var item model.Session
	if err := row.Scan(&item.ID, &item.StartedAt, &item.Label); err != nil {
		return nil, err
	}
	return &item, nil
}

// little helper
const selector = string(`select id, started_at, label from sessions`)
