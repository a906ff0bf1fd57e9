package injuries

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

var ErrInjuryNotFound = errors.New("injury not found")

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

func (r *Repo) Add(ctx context.Context, injury Injury) (_ *Injury, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.injuries.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO injury_history
				(athlete_id, injury_date, injury_type, body_part, severity,
				 recovery_date, days_missed, description, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id;`,
		injury.AthleteID, injury.InjuryDate, injury.InjuryType, injury.BodyPart,
		injury.Severity, injury.RecoveryDate, injury.DaysMissed, injury.Description,
		time.Now(),
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

	span.SetAttributes(attribute.Int("injury.id", id))

	injury.ID = id
	return &injury, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Injury, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.injuries.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		selectInjuryColumns+` WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	injuriesList, err := r.rows2injuries(rows)
	if err != nil {
		return nil, err
	}

	if len(injuriesList) != 1 {
		return nil, ErrInjuryNotFound
	}

	return &injuriesList[0], nil
}

func (r *Repo) Update(ctx context.Context, injury *Injury) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.injuries.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", injury.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE injury_history SET
				athlete_id = $1, injury_date = $2, injury_type = $3, body_part = $4,
				severity = $5, recovery_date = $6, days_missed = $7, description = $8
			WHERE id = $9;`,
		injury.AthleteID, injury.InjuryDate, injury.InjuryType, injury.BodyPart,
		injury.Severity, injury.RecoveryDate, injury.DaysMissed, injury.Description,
		injury.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrInjuryNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.injuries.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM injury_history WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInjuryNotFound
	}
	return nil
}

func (r *Repo) ListForAthlete(ctx context.Context, params ListParams) (_ []Injury, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.injuries.listForAthlete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", params.AthleteID))

	rows, err := r.db.Query(
		ctx,
		selectInjuryColumns+`
			WHERE athlete_id = $1
			AND ($2::date IS NULL OR injury_date >= $2)
			AND ($3::date IS NULL OR injury_date <= $3)
			ORDER BY injury_date DESC;`,
		params.AthleteID, params.From, params.To,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	injuriesList, err := r.rows2injuries(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2injuries: %w", err)
	}
	return injuriesList, nil
}

// CountSince returns the number of injuries on or after the given date.
func (r *Repo) CountSince(ctx context.Context, athleteID int, since time.Time) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.injuries.countSince")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", athleteID))

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*) FROM injury_history WHERE athlete_id = $1 AND injury_date >= $2;`,
		athleteID, since,
	)
	if err != nil {
		return -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return -1, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count, nil
		}
	}

	return -1, errors.New("unexpected error, failed to get injuries count")
}

// LastInjuryDate returns the date of the athlete's most recent injury, or
// nil if there is none on record.
func (r *Repo) LastInjuryDate(ctx context.Context, athleteID int) (_ *time.Time, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.injuries.lastInjuryDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", athleteID))

	rows, err := r.db.Query(
		ctx,
		`SELECT injury_date FROM injury_history
			WHERE athlete_id = $1
			ORDER BY injury_date DESC
			LIMIT 1;`,
		athleteID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, nil
	}

	var injuryDate time.Time
	if err := rows.Scan(&injuryDate); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}
	return &injuryDate, nil
}

const selectInjuryColumns = `
	SELECT
		id, athlete_id, injury_date, injury_type, body_part, severity,
		recovery_date, days_missed, description, created_at
	FROM injury_history`

func (r *Repo) rows2injuries(rows pgx.Rows) ([]Injury, error) {
	var injuriesList []Injury
	for rows.Next() {
		var i Injury
		var severity, description *string
		if err := rows.Scan(
			&i.ID, &i.AthleteID, &i.InjuryDate, &i.InjuryType, &i.BodyPart,
			&severity, &i.RecoveryDate, &i.DaysMissed, &description, &i.CreatedAt,
		); err != nil {
			return nil, err
		}
		if severity != nil {
			i.Severity = *severity
		}
		if description != nil {
			i.Description = *description
		}
		injuriesList = append(injuriesList, i)
	}

	if injuriesList == nil {
		injuriesList = make([]Injury, 0)
	}

	return injuriesList, nil
}
