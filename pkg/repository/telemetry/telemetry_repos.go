package telemetry

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
)

func Create(
	ctx context.Context,
	conn *pgx.Conn,
	sessionID uuid.UUID,
	s *model.EnrichedSample,
) error {
	_, err := conn.Exec(ctx, `
		insert into telemetry (
			session_id, accx, accy, accz, dpsx, dpsy, dpsz,
			roll, pitch, rpm, vel, temp_motor, soc, temp_cvt,
			volt, current, flags, latitude, longitude, ts,
			lap_count, current_lap_time, best_lap_time, last_lap_time,
			total_distance, lap_distance
		) values (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,
			$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26
		)`,
		sessionID, s.AccX, s.AccY, s.AccZ, s.DpsX, s.DpsY, s.DpsZ,
		s.Roll, s.Pitch, s.RPM, s.Speed, s.MotorTemp, s.SOC, s.CVTTemp,
		s.Volt, s.Current, int16(s.Flags), s.Latitude, s.Longitude,
		int64(s.Timestamp),
		s.LapCount, s.CurrentLapTime, s.BestLapTime, s.LastLapTime,
		s.TotalDistance, s.LapDistance)
	return err
}

// LoadBySession returns up to limit samples of a session, newest first.
func LoadBySession(
	ctx context.Context,
	conn *pgx.Conn,
	sessionID uuid.UUID,
	limit int,
) ([]*model.EnrichedSample, error) {
	rows, err := conn.Query(ctx,
		selector+" where session_id=$1 order by ts desc limit $2",
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ret := make([]*model.EnrichedSample, 0)
	for rows.Next() {
		var item model.EnrichedSample
		if err := scan(&item, rows); err != nil {
			return nil, err
		}
		ret = append(ret, &item)
	}
	return ret, rows.Err()
}

func DeleteBySession(ctx context.Context, conn *pgx.Conn, sessionID uuid.UUID) (int, error) {
	cmdTag, err := conn.Exec(ctx,
		"delete from telemetry where session_id=$1", sessionID)
	if err != nil {
		return 0, err
	}
	return int(cmdTag.RowsAffected()), nil
}

// little helper
const selector = string(`
	select accx, accy, accz, dpsx, dpsy, dpsz, roll, pitch, rpm, vel,
		temp_motor, soc, temp_cvt, volt, current, flags, latitude, longitude,
		ts, lap_count, current_lap_time, best_lap_time, last_lap_time,
		total_distance, lap_distance
	from telemetry`)

func scan(e *model.EnrichedSample, rows pgx.Rows) error {
	var flags int16
	var ts int64
	err := rows.Scan(&e.AccX, &e.AccY, &e.AccZ, &e.DpsX, &e.DpsY, &e.DpsZ,
		&e.Roll, &e.Pitch, &e.RPM, &e.Speed,
		&e.MotorTemp, &e.SOC, &e.CVTTemp, &e.Volt, &e.Current,
		&flags, &e.Latitude, &e.Longitude,
		&ts, &e.LapCount, &e.CurrentLapTime, &e.BestLapTime, &e.LastLapTime,
		&e.TotalDistance, &e.LapDistance)
	if err != nil {
		return err
	}
	e.Flags = uint8(flags)
	e.Timestamp = uint32(ts)
	return nil
}
