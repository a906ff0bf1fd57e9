package treatments

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

var ErrTreatmentNotFound = errors.New("treatment not found")

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

func (r *Repo) Add(ctx context.Context, treatment Treatment) (_ *Treatment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.treatments.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO treatment
				(athlete_id, date, modality, duration, body_part, severity, notes, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id;`,
		treatment.AthleteID, treatment.Date, treatment.Modality, treatment.Duration,
		treatment.BodyPart, treatment.Severity, treatment.Notes, time.Now(),
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

	span.SetAttributes(attribute.Int("treatment.id", id))

	treatment.ID = id
	return &treatment, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Treatment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.treatments.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, athlete_id, date, modality, duration, body_part, severity, notes, created_at
			FROM treatment
			WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	treatmentsList, err := r.rows2treatments(rows)
	if err != nil {
		return nil, err
	}

	if len(treatmentsList) != 1 {
		return nil, ErrTreatmentNotFound
	}

	return &treatmentsList[0], nil
}

func (r *Repo) Update(ctx context.Context, treatment *Treatment) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.treatments.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", treatment.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE treatment SET
				athlete_id = $1, date = $2, modality = $3, duration = $4,
				body_part = $5, severity = $6, notes = $7
			WHERE id = $8;`,
		treatment.AthleteID, treatment.Date, treatment.Modality, treatment.Duration,
		treatment.BodyPart, treatment.Severity, treatment.Notes,
		treatment.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrTreatmentNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.treatments.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM treatment WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTreatmentNotFound
	}
	return nil
}

func (r *Repo) ListForAthlete(ctx context.Context, params ListParams) (_ []Treatment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.treatments.listForAthlete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", params.AthleteID))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, athlete_id, date, modality, duration, body_part, severity, notes, created_at
			FROM treatment
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

	treatmentsList, err := r.rows2treatments(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2treatments: %w", err)
	}
	return treatmentsList, nil
}

func (r *Repo) rows2treatments(rows pgx.Rows) ([]Treatment, error) {
	var treatmentsList []Treatment
	for rows.Next() {
		var t Treatment
		var bodyPart, severity, notes *string
		if err := rows.Scan(
			&t.ID, &t.AthleteID, &t.Date, &t.Modality, &t.Duration,
			&bodyPart, &severity, &notes, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		if bodyPart != nil {
			t.BodyPart = *bodyPart
		}
		if severity != nil {
			t.Severity = *severity
		}
		if notes != nil {
			t.Notes = *notes
		}
		treatmentsList = append(treatmentsList, t)
	}

	if treatmentsList == nil {
		treatmentsList = make([]Treatment, 0)
	}

	return treatmentsList, nil
}
