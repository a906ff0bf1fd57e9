package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teampulse/teampulse/internal/injuries"
	"github.com/teampulse/teampulse/internal/lifestyle"
	"github.com/teampulse/teampulse/internal/telemetry/metrics"
	"github.com/teampulse/teampulse/internal/telemetry/tracing"
	"github.com/teampulse/teampulse/internal/training"
	"github.com/teampulse/teampulse/internal/treatments"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"
)

// ErrUnknownAthlete is returned when an assessment is requested for an
// athlete ID that does not exist.
var ErrUnknownAthlete = errors.New("unknown athlete")

// AthleteInfo is the slice of athlete data the risk service needs. It is
// deliberately small so the athletes package can depend on this package
// (for Assessment) without a cycle.
type AthleteInfo struct {
	ID   int
	Name string
	Age  int
}

type athleteProvider interface {
	GetForRisk(ctx context.Context, id int) (*AthleteInfo, error)
	ListForRisk(ctx context.Context) ([]AthleteInfo, error)
}

type loadsProvider interface {
	ListForAthlete(ctx context.Context, params training.ListParams) ([]training.TrainingLoad, error)
}

type lifestyleProvider interface {
	ListForAthlete(ctx context.Context, params lifestyle.ListParams) ([]lifestyle.LifestyleLog, error)
}

type treatmentsProvider interface {
	ListForAthlete(ctx context.Context, params treatments.ListParams) ([]treatments.Treatment, error)
}

type injuriesProvider interface {
	ListForAthlete(ctx context.Context, params injuries.ListParams) ([]injuries.Injury, error)
}

type assessmentsRepo interface {
	Add(ctx context.Context, assessment Assessment) (*Assessment, error)
	ExistsForDate(ctx context.Context, athleteID int, date time.Time) (bool, error)
}

// Service glues the pure engine to the stored athlete data: it assembles a
// History from the repos, runs the engine and persists the snapshot.
type Service struct {
	engine         *Engine
	repo           assessmentsRepo
	athletes       athleteProvider
	loads          loadsProvider
	lifestyle      lifestyleProvider
	treatments     treatmentsProvider
	injuries       injuriesProvider
	metricsManager *metrics.Manager
}

func NewService(
	repo assessmentsRepo,
	athletes athleteProvider,
	loads loadsProvider,
	lifestyleLogs lifestyleProvider,
	treatmentsRepo treatmentsProvider,
	injuriesRepo injuriesProvider,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		engine:         NewEngine(),
		repo:           repo,
		athletes:       athletes,
		loads:          loads,
		lifestyle:      lifestyleLogs,
		treatments:     treatmentsRepo,
		injuries:       injuriesRepo,
		metricsManager: metricsManager,
	}
}

const (
	// spike baselines reach back a further chronic window behind the oldest
	// day of the acute window, so loads are fetched wider than the chronic
	// window itself
	loadsLookbackDays = chronicWindowDays + acuteWindowDays - 1
)

// Assess runs the engine for the athlete as of date without persisting
// anything. Dashboard aggregates use it for athletes with no stored
// snapshot yet.
func (s *Service) Assess(ctx context.Context, athleteID int, date time.Time) (_ *Assessment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "risk.service.assess")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", athleteID))

	calcStart := time.Now()
	defer func() {
		s.metricsManager.HistRiskCalcDuration.Observe(time.Since(calcStart).Seconds())
	}()

	athlete, err := s.athletes.GetForRisk(ctx, athleteID)
	if err != nil {
		return nil, err
	}

	history, err := s.buildHistory(ctx, athlete, date)
	if err != nil {
		return nil, fmt.Errorf("build history: %w", err)
	}

	assessment, err := s.engine.Calculate(*history, date)
	if err != nil {
		return nil, err
	}
	assessment.AthleteID = athleteID

	return assessment, nil
}

// Calculate runs a fresh assessment for the athlete as of date and stores
// it. Every call appends a new snapshot, even for a date that already has
// one, so coaches can re-assess after a data correction.
func (s *Service) Calculate(ctx context.Context, athleteID int, date time.Time) (_ *Assessment, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "risk.service.calculate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("athlete_id", athleteID))

	assessment, err := s.Assess(ctx, athleteID, date)
	if err != nil {
		return nil, err
	}

	added, err := s.repo.Add(ctx, *assessment)
	if err != nil {
		return nil, fmt.Errorf("store assessment: %w", err)
	}

	s.metricsManager.CounterRiskAssessments.Inc()

	return added, nil
}

// CalculateAll assesses every athlete for the given date, skipping those
// that already have a snapshot for it and those with no training data.
// Returns the number of assessments actually calculated; per-athlete errors
// are aggregated, a failing athlete never aborts the batch.
func (s *Service) CalculateAll(ctx context.Context, date time.Time) (calculated int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "risk.service.calculateAll")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	athletesList, err := s.athletes.ListForRisk(ctx)
	if err != nil {
		return 0, fmt.Errorf("list athletes: %w", err)
	}

	day := truncateToDay(date)

	var errs error
	for _, athlete := range athletesList {
		exists, existsErr := s.repo.ExistsForDate(ctx, athlete.ID, day)
		if existsErr != nil {
			errs = multierr.Append(errs, fmt.Errorf("athlete %d: %w", athlete.ID, existsErr))
			continue
		}
		if exists {
			continue
		}

		if _, calcErr := s.Calculate(ctx, athlete.ID, day); calcErr != nil {
			if errors.Is(calcErr, ErrInsufficientData) {
				log.Tracef("calculate all risks: athlete %d skipped, no training data", athlete.ID)
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("athlete %d: %w", athlete.ID, calcErr))
			continue
		}

		calculated++
	}

	span.SetAttributes(attribute.Int("calculated", calculated))

	return calculated, errs
}

func (s *Service) buildHistory(ctx context.Context, athlete *AthleteInfo, date time.Time) (*History, error) {
	day := truncateToDay(date)

	loadsFrom := day.AddDate(0, 0, -loadsLookbackDays)
	loads, err := s.loads.ListForAthlete(ctx, training.ListParams{
		AthleteID: athlete.ID,
		From:      &loadsFrom,
		To:        &day,
	})
	if err != nil {
		return nil, fmt.Errorf("list training loads: %w", err)
	}

	lifestyleFrom := day.AddDate(0, 0, -lifestyleLookbackDays)
	lifestyleLogs, err := s.lifestyle.ListForAthlete(ctx, lifestyle.ListParams{
		AthleteID: athlete.ID,
		From:      &lifestyleFrom,
		To:        &day,
	})
	if err != nil {
		return nil, fmt.Errorf("list lifestyle logs: %w", err)
	}

	treatmentsFrom := day.AddDate(0, 0, -recoveryLookbackDays)
	treatmentsList, err := s.treatments.ListForAthlete(ctx, treatments.ListParams{
		AthleteID: athlete.ID,
		From:      &treatmentsFrom,
		To:        &day,
	})
	if err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}

	injuriesFrom := day.AddDate(0, 0, -injuryHistoryLookbackDays)
	injuriesList, err := s.injuries.ListForAthlete(ctx, injuries.ListParams{
		AthleteID: athlete.ID,
		From:      &injuriesFrom,
		To:        &day,
	})
	if err != nil {
		return nil, fmt.Errorf("list injuries: %w", err)
	}

	history := &History{
		Age:        athlete.Age,
		Loads:      make([]LoadRecord, 0, len(loads)),
		Lifestyle:  make([]LifestyleRecord, 0, len(lifestyleLogs)),
		Treatments: make([]TreatmentRecord, 0, len(treatmentsList)),
		Injuries:   make([]InjuryRecord, 0, len(injuriesList)),
	}

	for _, l := range loads {
		history.Loads = append(history.Loads, LoadRecord{
			Date: l.Date,
			Load: l.TrainingLoad,
		})
	}
	for _, l := range lifestyleLogs {
		history.Lifestyle = append(history.Lifestyle, LifestyleRecord{
			Date:           l.Date,
			SleepHours:     l.SleepHours,
			SleepQuality:   l.SleepQuality,
			NutritionScore: l.NutritionScore,
			StressLevel:    l.StressLevel,
		})
	}
	for _, t := range treatmentsList {
		history.Treatments = append(history.Treatments, TreatmentRecord{
			Date:     t.Date,
			Severity: t.Severity,
		})
	}
	for _, i := range injuriesList {
		history.Injuries = append(history.Injuries, InjuryRecord{
			Date:     i.InjuryDate,
			Severity: i.Severity,
		})
	}

	return history, nil
}
