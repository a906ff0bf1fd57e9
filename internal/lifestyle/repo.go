package lifestyle

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

var ErrLifestyleLogNotFound = errors.New("lifestyle log not found")

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

func (r *Repo) Add(ctx context.Context, lifestyleLog LifestyleLog) (_ *LifestyleLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.lifestyle.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO lifestyle_log
				(athlete_id, date, sleep_hours, sleep_quality, nutrition_score,
				 hydration_liters, stress_level, soreness_level, fatigue_level,
				 notes, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id;`,
		lifestyleLog.AthleteID, lifestyleLog.Date,
		lifestyleLog.SleepHours, lifestyleLog.SleepQuality, lifestyleLog.NutritionScore,
		lifestyleLog.HydrationLiters, lifestyleLog.StressLevel, lifestyleLog.SorenessLevel,
		lifestyleLog.FatigueLevel, lifestyleLog.Notes, time.Now(),
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

	span.SetAttributes(attribute.Int("lifestyle_log.id", id))

	lifestyleLog.ID = id
	return &lifestyleLog, nil
}

func (r *Repo) Update(ctx context.Context, lifestyleLog *LifestyleLog) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.lifestyle.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", lifestyleLog.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE lifestyle_log SET
				athlete_id = $1, date = $2, sleep_hours = $3, sleep_quality = $4,
				nutrition_score = $5, hydration_liters = $6, stress_level = $7,
				soreness_level = $8, fatigue_level = $9, notes = $10
			WHERE id = $11;`,
		lifestyleLog.AthleteID, lifestyleLog.Date,
		lifestyleLog.SleepHours, lifestyleLog.SleepQuality, lifestyleLog.NutritionScore,
		lifestyleLog.HydrationLiters, lifestyleLog.StressLevel, lifestyleLog.SorenessLevel,
		lifestyleLog.FatigueLevel, lifestyleLog.Notes,
		lifestyleLog.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrLifestyleLogNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.lifestyle.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM lifestyle_log WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLifestyleLogNotFound
	}
	return nil
}

func (r *Repo) ListForAthlete(ctx context.Context, params ListParams) (_ []LifestyleLog, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.lifestyle.listForAthlete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", params.AthleteID))

	rows, err := r.db.Query(
		ctx,
		`SELECT
				id, athlete_id, date, sleep_hours, sleep_quality, nutrition_score,
				hydration_liters, stress_level, soreness_level, fatigue_level,
				notes, created_at
			FROM lifestyle_log
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

	logs, err := r.rows2logs(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2logs: %w", err)
	}
	return logs, nil
}

func (r *Repo) rows2logs(rows pgx.Rows) ([]LifestyleLog, error) {
	var logs []LifestyleLog
	for rows.Next() {
		var l LifestyleLog
		var notes *string
		if err := rows.Scan(
			&l.ID, &l.AthleteID, &l.Date,
			&l.SleepHours, &l.SleepQuality, &l.NutritionScore,
			&l.HydrationLiters, &l.StressLevel, &l.SorenessLevel, &l.FatigueLevel,
			&notes, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		if notes != nil {
			l.Notes = *notes
		}
		logs = append(logs, l)
	}

	if logs == nil {
		logs = make([]LifestyleLog, 0)
	}

	return logs, nil
}
