package risk

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/teampulse/teampulse/internal/injuries"
	"github.com/teampulse/teampulse/internal/lifestyle"
	"github.com/teampulse/teampulse/internal/telemetry/metrics"
	"github.com/teampulse/teampulse/internal/training"
	"github.com/teampulse/teampulse/internal/treatments"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssessmentsRepo struct {
	added    []Assessment
	existing map[string]bool // "athleteID|date"
	addErr   error
}

func newFakeAssessmentsRepo() *fakeAssessmentsRepo {
	return &fakeAssessmentsRepo{
		existing: make(map[string]bool),
	}
}

func existsKey(athleteID int, date time.Time) string {
	return fmt.Sprintf("%d|%s", athleteID, date.Format(time.DateOnly))
}

func (f *fakeAssessmentsRepo) Add(_ context.Context, assessment Assessment) (*Assessment, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	assessment.ID = len(f.added) + 1
	f.added = append(f.added, assessment)
	return &assessment, nil
}

func (f *fakeAssessmentsRepo) ExistsForDate(_ context.Context, athleteID int, date time.Time) (bool, error) {
	return f.existing[existsKey(athleteID, date)], nil
}

type fakeAthleteProvider struct {
	athletes map[int]AthleteInfo
}

func (f *fakeAthleteProvider) GetForRisk(_ context.Context, id int) (*AthleteInfo, error) {
	athlete, ok := f.athletes[id]
	if !ok {
		return nil, ErrUnknownAthlete
	}
	return &athlete, nil
}

func (f *fakeAthleteProvider) ListForRisk(_ context.Context) ([]AthleteInfo, error) {
	infos := make([]AthleteInfo, 0, len(f.athletes))
	for _, a := range f.athletes {
		infos = append(infos, a)
	}
	return infos, nil
}

type fakeLoadsProvider struct {
	loads      map[int][]training.TrainingLoad
	lastParams training.ListParams
}

func (f *fakeLoadsProvider) ListForAthlete(_ context.Context, params training.ListParams) ([]training.TrainingLoad, error) {
	f.lastParams = params
	return f.loads[params.AthleteID], nil
}

type fakeLifestyleProvider struct {
	logs       []lifestyle.LifestyleLog
	lastParams lifestyle.ListParams
}

func (f *fakeLifestyleProvider) ListForAthlete(_ context.Context, params lifestyle.ListParams) ([]lifestyle.LifestyleLog, error) {
	f.lastParams = params
	return f.logs, nil
}

type fakeTreatmentsProvider struct {
	treatments []treatments.Treatment
	lastParams treatments.ListParams
}

func (f *fakeTreatmentsProvider) ListForAthlete(_ context.Context, params treatments.ListParams) ([]treatments.Treatment, error) {
	f.lastParams = params
	return f.treatments, nil
}

type fakeInjuriesProvider struct {
	injuries []injuries.Injury
}

func (f *fakeInjuriesProvider) ListForAthlete(_ context.Context, _ injuries.ListParams) ([]injuries.Injury, error) {
	return f.injuries, nil
}

func steadyTrainingLoads(athleteID int, until time.Time, days int, load float64) []training.TrainingLoad {
	loads := make([]training.TrainingLoad, 0, days)
	for i := 0; i < days; i++ {
		loads = append(loads, training.TrainingLoad{
			AthleteID:    athleteID,
			Date:         until.AddDate(0, 0, -i),
			TrainingLoad: load,
		})
	}
	return loads
}

func newTestService(
	repo *fakeAssessmentsRepo,
	athletesProvider *fakeAthleteProvider,
	loads *fakeLoadsProvider,
) (*Service, *metrics.Manager) {
	metricsManager := metrics.NewTestManager()
	service := NewService(
		repo,
		athletesProvider,
		loads,
		&fakeLifestyleProvider{},
		&fakeTreatmentsProvider{},
		&fakeInjuriesProvider{},
		metricsManager,
	)
	return service, metricsManager
}

func TestService_Calculate(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	repo := newFakeAssessmentsRepo()
	athletesProvider := &fakeAthleteProvider{
		athletes: map[int]AthleteInfo{
			1: {ID: 1, Name: "Mia Kovač", Age: 24},
		},
	}
	loads := &fakeLoadsProvider{
		loads: map[int][]training.TrainingLoad{
			1: steadyTrainingLoads(1, day, 28, 100),
		},
	}

	service, metricsManager := newTestService(repo, athletesProvider, loads)

	assessment, err := service.Calculate(context.Background(), 1, day)
	require.NoError(t, err)
	require.NotNil(t, assessment)

	assert.Equal(t, 1, assessment.AthleteID)
	assert.Equal(t, day, assessment.Date)
	require.NotNil(t, assessment.ACWR)
	assert.InDelta(t, 1.0, *assessment.ACWR, 0.001)
	assert.Equal(t, 28, assessment.DataDays)
	assert.False(t, assessment.LowConfidence)

	require.Len(t, repo.added, 1)
	assert.Equal(t, 1, repo.added[0].AthleteID)

	assert.InDelta(t, 1, testutil.ToFloat64(metricsManager.CounterRiskAssessments), 0.001)

	// loads are fetched wide enough for the spike baselines of the
	// oldest acute day
	require.NotNil(t, loads.lastParams.From)
	assert.Equal(t, day.AddDate(0, 0, -34), *loads.lastParams.From)
}

func TestService_Assess_FetchWindowsCoverScoredDays(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	repo := newFakeAssessmentsRepo()
	athletesProvider := &fakeAthleteProvider{
		athletes: map[int]AthleteInfo{
			1: {ID: 1, Name: "Mia Kovač", Age: 24},
		},
	}
	loads := &fakeLoadsProvider{
		loads: map[int][]training.TrainingLoad{
			1: steadyTrainingLoads(1, day, 28, 100),
		},
	}
	lifestyleProvider := &fakeLifestyleProvider{}
	treatmentsProvider := &fakeTreatmentsProvider{}

	metricsManager := metrics.NewTestManager()
	service := NewService(
		repo,
		athletesProvider,
		loads,
		lifestyleProvider,
		treatmentsProvider,
		&fakeInjuriesProvider{},
		metricsManager,
	)

	_, err := service.Assess(context.Background(), 1, day)
	require.NoError(t, err)

	// the oldest day each sub-score still counts must be inside the
	// fetched range: a log exactly 7 days back and a treatment exactly
	// 14 days back both change the score
	require.NotNil(t, lifestyleProvider.lastParams.From)
	assert.Equal(t, day.AddDate(0, 0, -lifestyleLookbackDays), *lifestyleProvider.lastParams.From)
	require.NotNil(t, treatmentsProvider.lastParams.From)
	assert.Equal(t, day.AddDate(0, 0, -recoveryLookbackDays), *treatmentsProvider.lastParams.From)

	boundaryTreatments := []TreatmentRecord{
		{Date: day.AddDate(0, 0, -recoveryLookbackDays), Severity: "minor"},
	}
	assert.Greater(t, recoveryScore(boundaryTreatments, day), recoveryScore([]TreatmentRecord{}, day))

	sleep, nutrition := 8.0, 9
	boundaryLogs := []LifestyleRecord{
		{Date: day.AddDate(0, 0, -lifestyleLookbackDays), SleepHours: &sleep, NutritionScore: &nutrition},
	}
	assert.NotEqual(t, lifestyleScore(nil, day), lifestyleScore(boundaryLogs, day))
	assert.False(t, boundaryLogs[0].Date.Before(*lifestyleProvider.lastParams.From))
	assert.False(t, boundaryTreatments[0].Date.Before(*treatmentsProvider.lastParams.From))
}

func TestService_Calculate_UnknownAthlete(t *testing.T) {
	repo := newFakeAssessmentsRepo()
	service, _ := newTestService(repo, &fakeAthleteProvider{athletes: map[int]AthleteInfo{}}, &fakeLoadsProvider{})

	assessment, err := service.Calculate(context.Background(), 42, time.Now())
	require.ErrorIs(t, err, ErrUnknownAthlete)
	assert.Nil(t, assessment)
	assert.Empty(t, repo.added)
}

func TestService_Calculate_InsufficientData(t *testing.T) {
	repo := newFakeAssessmentsRepo()
	athletesProvider := &fakeAthleteProvider{
		athletes: map[int]AthleteInfo{
			1: {ID: 1, Name: "Mia Kovač", Age: 24},
		},
	}
	service, metricsManager := newTestService(repo, athletesProvider, &fakeLoadsProvider{})

	assessment, err := service.Calculate(context.Background(), 1, time.Now())
	require.ErrorIs(t, err, ErrInsufficientData)
	assert.Nil(t, assessment)
	assert.Empty(t, repo.added)
	assert.InDelta(t, 0, testutil.ToFloat64(metricsManager.CounterRiskAssessments), 0.001)
}

func TestService_Calculate_AlwaysAppends(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	repo := newFakeAssessmentsRepo()
	athletesProvider := &fakeAthleteProvider{
		athletes: map[int]AthleteInfo{
			1: {ID: 1, Name: "Mia Kovač", Age: 24},
		},
	}
	loads := &fakeLoadsProvider{
		loads: map[int][]training.TrainingLoad{
			1: steadyTrainingLoads(1, day, 28, 100),
		},
	}
	service, _ := newTestService(repo, athletesProvider, loads)

	_, err := service.Calculate(context.Background(), 1, day)
	require.NoError(t, err)
	_, err = service.Calculate(context.Background(), 1, day)
	require.NoError(t, err)

	// a second calculation for the same date is a new snapshot
	require.Len(t, repo.added, 2)
}

func TestService_CalculateAll(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	repo := newFakeAssessmentsRepo()
	athletesProvider := &fakeAthleteProvider{
		athletes: map[int]AthleteInfo{
			1: {ID: 1, Name: "Mia Kovač", Age: 24},
			2: {ID: 2, Name: "Jon Berg", Age: 31},
			3: {ID: 3, Name: "Ana Silva", Age: 27},
		},
	}
	loads := &fakeLoadsProvider{
		loads: map[int][]training.TrainingLoad{
			1: steadyTrainingLoads(1, day, 28, 100),
			2: steadyTrainingLoads(2, day, 28, 120),
			// athlete 3 has no training data at all
		},
	}
	service, metricsManager := newTestService(repo, athletesProvider, loads)

	// athlete 2 was already assessed for this date
	repo.existing[existsKey(2, day)] = true

	calculated, err := service.CalculateAll(context.Background(), day)
	require.NoError(t, err)

	// only athlete 1 gets a fresh snapshot: 2 is skipped as already
	// assessed, 3 as having no data
	assert.Equal(t, 1, calculated)
	require.Len(t, repo.added, 1)
	assert.Equal(t, 1, repo.added[0].AthleteID)

	assert.InDelta(t, 1, testutil.ToFloat64(metricsManager.CounterRiskAssessments), 0.001)
}

func TestService_CalculateAll_AggregatesErrors(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	repo := newFakeAssessmentsRepo()
	repo.addErr = errors.New("db gone")
	athletesProvider := &fakeAthleteProvider{
		athletes: map[int]AthleteInfo{
			1: {ID: 1, Name: "Mia Kovač", Age: 24},
		},
	}
	loads := &fakeLoadsProvider{
		loads: map[int][]training.TrainingLoad{
			1: steadyTrainingLoads(1, day, 28, 100),
		},
	}
	service, _ := newTestService(repo, athletesProvider, loads)

	calculated, err := service.CalculateAll(context.Background(), day)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
	assert.Zero(t, calculated)
}
