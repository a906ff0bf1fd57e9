package athletes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teampulse/teampulse/internal/risk"
	"github.com/teampulse/teampulse/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

var ErrAthleteNotFound = errors.New("athlete not found")

type ListParams struct {
	Team string
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, athlete Athlete) (_ *Athlete, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.athletes.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	now := time.Now()
	rows, err := r.db.Query(
		ctx,
		`INSERT INTO athlete
				(name, position, age, email, team, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $6)
			RETURNING id;`,
		athlete.Name, athlete.Position, athlete.Age, athlete.Email, athlete.Team, now,
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

	span.SetAttributes(attribute.Int("athlete.id", id))

	athlete.ID = id
	athlete.CreatedAt = now
	athlete.UpdatedAt = now
	return &athlete, nil
}

func (r *Repo) Update(ctx context.Context, athlete *Athlete) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.athletes.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", athlete.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE athlete SET name = $1, position = $2, age = $3, email = $4, team = $5, updated_at = $6 WHERE id = $7;`,
		athlete.Name, athlete.Position, athlete.Age, athlete.Email, athlete.Team, time.Now(), athlete.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrAthleteNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.athletes.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM athlete WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAthleteNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Athlete, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.athletes.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, position, age, email, team, created_at, updated_at
			FROM athlete
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

	athletes, err := r.rows2athletes(rows)
	if err != nil {
		return nil, err
	}

	if len(athletes) != 1 {
		return nil, ErrAthleteNotFound
	}

	return &athletes[0], nil
}

// GetByName looks an athlete up by exact name. CSV imports use it when a
// file carries athlete names instead of IDs.
func (r *Repo) GetByName(ctx context.Context, name string) (_ *Athlete, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.athletes.getByName")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("name", name))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, position, age, email, team, created_at, updated_at
			FROM athlete
			WHERE name = $1
			LIMIT 1;`,
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	athletes, err := r.rows2athletes(rows)
	if err != nil {
		return nil, err
	}

	if len(athletes) != 1 {
		return nil, ErrAthleteNotFound
	}

	return &athletes[0], nil
}

// List returns all athletes, optionally filtered by team.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []Athlete, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.athletes.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("team", params.Team))

	rows, err := r.db.Query(
		ctx,
		`SELECT id, name, position, age, email, team, created_at, updated_at
			FROM athlete
			WHERE ($1::text = '' OR team = $1)
			ORDER BY name;`,
		params.Team,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	athletes, err := r.rows2athletes(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2athletes: %w", err)
	}
	return athletes, nil
}

// GetForRisk satisfies the risk service's athlete provider.
func (r *Repo) GetForRisk(ctx context.Context, id int) (*risk.AthleteInfo, error) {
	athlete, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAthleteNotFound) {
			return nil, risk.ErrUnknownAthlete
		}
		return nil, err
	}
	return &risk.AthleteInfo{
		ID:   athlete.ID,
		Name: athlete.Name,
		Age:  athlete.Age,
	}, nil
}

func (r *Repo) ListForRisk(ctx context.Context) ([]risk.AthleteInfo, error) {
	athletes, err := r.List(ctx, ListParams{})
	if err != nil {
		return nil, err
	}

	infos := make([]risk.AthleteInfo, 0, len(athletes))
	for _, a := range athletes {
		infos = append(infos, risk.AthleteInfo{
			ID:   a.ID,
			Name: a.Name,
			Age:  a.Age,
		})
	}
	return infos, nil
}

func (r *Repo) rows2athletes(rows pgx.Rows) ([]Athlete, error) {
	var athletes []Athlete
	for rows.Next() {
		var a Athlete
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Position, &a.Age, &a.Email, &a.Team, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		athletes = append(athletes, a)
	}

	if athletes == nil {
		athletes = make([]Athlete, 0)
	}

	return athletes, nil
}
