package risk

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

var ErrAssessmentNotFound = errors.New("risk assessment not found")

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

// Add appends a new assessment snapshot. Assessments are never updated in
// place: each calculation writes a fresh row so risk trends stay intact.
func (r *Repo) Add(ctx context.Context, assessment Assessment) (_ *Assessment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.risk.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO risk_assessment
				(athlete_id, date, overall_risk_score, risk_level, acwr, acute_load,
				 chronic_load, load_spike_score, recovery_score, lifestyle_score,
				 injury_history_score, training_monotony, training_strain,
				 current_z_score, max_z_score_7d, sleep_modifier, stress_modifier,
				 injury_recency_modifier, age_modifier, compound_multiplier,
				 data_days, low_confidence, recommendations, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
						$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
			RETURNING id;`,
		assessment.AthleteID, assessment.Date, assessment.OverallRiskScore,
		assessment.RiskLevel, assessment.ACWR, assessment.AcuteLoad,
		assessment.ChronicLoad, assessment.LoadSpikeScore, assessment.RecoveryScore,
		assessment.LifestyleScore, assessment.InjuryHistoryScore,
		assessment.TrainingMonotony, assessment.TrainingStrain,
		assessment.CurrentZScore, assessment.MaxZScore7d,
		assessment.SleepModifier, assessment.StressModifier,
		assessment.InjuryRecencyModifier, assessment.AgeModifier,
		assessment.CompoundMultiplier, assessment.DataDays,
		assessment.LowConfidence, assessment.Recommendations, time.Now(),
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

	span.SetAttributes(attribute.Int("assessment.id", id))

	assessment.ID = id
	return &assessment, nil
}

func (r *Repo) GetLatest(ctx context.Context, athleteID int) (_ *Assessment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.risk.getLatest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", athleteID))

	rows, err := r.db.Query(
		ctx,
		selectAssessmentColumns+`
			WHERE athlete_id = $1
			ORDER BY date DESC, id DESC
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

	assessments, err := r.rows2assessments(rows)
	if err != nil {
		return nil, err
	}

	if len(assessments) != 1 {
		return nil, ErrAssessmentNotFound
	}

	return &assessments[0], nil
}

func (r *Repo) ListForAthlete(ctx context.Context, athleteID int, from, to *time.Time) (_ []Assessment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.risk.listForAthlete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", athleteID))

	rows, err := r.db.Query(
		ctx,
		selectAssessmentColumns+`
			WHERE athlete_id = $1
			AND ($2::date IS NULL OR date >= $2)
			AND ($3::date IS NULL OR date <= $3)
			ORDER BY date DESC, id DESC;`,
		athleteID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	assessments, err := r.rows2assessments(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2assessments: %w", err)
	}
	return assessments, nil
}

// ExistsForDate reports whether the athlete already has a snapshot for the
// given date; the nightly batch uses it to stay idempotent.
func (r *Repo) ExistsForDate(ctx context.Context, athleteID int, date time.Time) (_ bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.risk.existsForDate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", athleteID))

	rows, err := r.db.Query(
		ctx,
		`SELECT COUNT(*) FROM risk_assessment WHERE athlete_id = $1 AND date = $2;`,
		athleteID, date,
	)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return false, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count > 0, nil
		}
	}

	return false, errors.New("unexpected error, failed to get assessments count")
}

const selectAssessmentColumns = `
	SELECT
		id, athlete_id, date, overall_risk_score, risk_level, acwr, acute_load,
		chronic_load, load_spike_score, recovery_score, lifestyle_score,
		injury_history_score, training_monotony, training_strain,
		current_z_score, max_z_score_7d, sleep_modifier, stress_modifier,
		injury_recency_modifier, age_modifier, compound_multiplier,
		data_days, low_confidence, recommendations, created_at
	FROM risk_assessment`

func (r *Repo) rows2assessments(rows pgx.Rows) ([]Assessment, error) {
	var assessments []Assessment
	for rows.Next() {
		var a Assessment
		if err := rows.Scan(
			&a.ID, &a.AthleteID, &a.Date, &a.OverallRiskScore, &a.RiskLevel,
			&a.ACWR, &a.AcuteLoad, &a.ChronicLoad, &a.LoadSpikeScore,
			&a.RecoveryScore, &a.LifestyleScore, &a.InjuryHistoryScore,
			&a.TrainingMonotony, &a.TrainingStrain, &a.CurrentZScore,
			&a.MaxZScore7d, &a.SleepModifier, &a.StressModifier,
			&a.InjuryRecencyModifier, &a.AgeModifier, &a.CompoundMultiplier,
			&a.DataDays, &a.LowConfidence, &a.Recommendations, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	if assessments == nil {
		assessments = make([]Assessment, 0)
	}

	return assessments, nil
}
