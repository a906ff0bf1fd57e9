package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teampulse/teampulse/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrTrainingLoadNotFound = errors.New("training load not found")

type ListParams struct {
	AthleteID int
	From      *time.Time
	To        *time.Time
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, load TrainingLoad) (_ *TrainingLoad, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO training_load
				(athlete_id, date, total_distance, high_speed_distance, sprint_distance,
				 accelerations, decelerations, max_speed, training_load, duration,
				 session_type, player_load, metabolic_power, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id;`,
		load.AthleteID, load.Date,
		load.TotalDistance, load.HighSpeedDistance, load.SprintDistance,
		load.Accelerations, load.Decelerations, load.MaxSpeed,
		load.TrainingLoad, load.Duration, load.SessionType,
		load.PlayerLoad, load.MetabolicPower, time.Now(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("training_load.id", id))

	load.ID = id
	return &load, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *TrainingLoad, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		selectTrainingLoadColumns+` WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	loads, err := r.rows2loads(rows)
	if err != nil {
		return nil, err
	}

	if len(loads) != 1 {
		return nil, ErrTrainingLoadNotFound
	}

	return &loads[0], nil
}

func (r *Repo) Update(ctx context.Context, load *TrainingLoad) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", load.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE training_load SET
				athlete_id = $1, date = $2, total_distance = $3, high_speed_distance = $4,
				sprint_distance = $5, accelerations = $6, decelerations = $7, max_speed = $8,
				training_load = $9, duration = $10, session_type = $11, player_load = $12,
				metabolic_power = $13
			WHERE id = $14;`,
		load.AthleteID, load.Date,
		load.TotalDistance, load.HighSpeedDistance, load.SprintDistance,
		load.Accelerations, load.Decelerations, load.MaxSpeed,
		load.TrainingLoad, load.Duration, load.SessionType,
		load.PlayerLoad, load.MetabolicPower,
		load.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrTrainingLoadNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM training_load WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTrainingLoadNotFound
	}
	return nil
}

// ListForAthlete returns the athlete's loads within the date range, newest
// first. The risk engine and dashboards both read through here.
func (r *Repo) ListForAthlete(ctx context.Context, params ListParams) (_ []TrainingLoad, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.training.listForAthlete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", params.AthleteID))
	if params.From != nil {
		span.SetAttributes(attribute.String("from", params.From.String()))
	}
	if params.To != nil {
		span.SetAttributes(attribute.String("to", params.To.String()))
	}

	rows, err := r.db.Query(
		ctx,
		selectTrainingLoadColumns+`
			WHERE athlete_id = $1
			AND ($2::date IS NULL OR date >= $2)
			AND ($3::date IS NULL OR date <= $3)
			ORDER BY date DESC;`,
		params.AthleteID, params.From, params.To,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	loads, err := r.rows2loads(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2loads: %w", err)
	}
	return loads, nil
}

const selectTrainingLoadColumns = `
	SELECT
		id, athlete_id, date, total_distance, high_speed_distance, sprint_distance,
		accelerations, decelerations, max_speed, training_load, duration,
		session_type, player_load, metabolic_power, created_at
	FROM training_load`

func (r *Repo) rows2loads(rows pgx.Rows) ([]TrainingLoad, error) {
	var loads []TrainingLoad
	for rows.Next() {
		var l TrainingLoad
		var sessionType *string
		if err := rows.Scan(
			&l.ID, &l.AthleteID, &l.Date,
			&l.TotalDistance, &l.HighSpeedDistance, &l.SprintDistance,
			&l.Accelerations, &l.Decelerations, &l.MaxSpeed,
			&l.TrainingLoad, &l.Duration, &sessionType,
			&l.PlayerLoad, &l.MetabolicPower, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		if sessionType != nil {
			l.SessionType = *sessionType
		}
		loads = append(loads, l)
	}

	if loads == nil {
		loads = make([]TrainingLoad, 0)
	}

	return loads, nil
}
