package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teampulse/teampulse/internal/athletes"
	"github.com/teampulse/teampulse/internal/risk"
	"github.com/teampulse/teampulse/internal/training"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testToday = time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)

type fakeAthletesRepo struct {
	athletes []athletes.Athlete
}

func (f *fakeAthletesRepo) Get(_ context.Context, id int) (*athletes.Athlete, error) {
	for i := range f.athletes {
		if f.athletes[i].ID == id {
			return &f.athletes[i], nil
		}
	}
	return nil, athletes.ErrAthleteNotFound
}

func (f *fakeAthletesRepo) List(_ context.Context, params athletes.ListParams) ([]athletes.Athlete, error) {
	listed := make([]athletes.Athlete, 0, len(f.athletes))
	for _, a := range f.athletes {
		if params.Team != "" && a.Team != params.Team {
			continue
		}
		listed = append(listed, a)
	}
	return listed, nil
}

type fakeAssessmentsRepo struct {
	latest map[int]*risk.Assessment
}

func (f *fakeAssessmentsRepo) GetLatest(_ context.Context, athleteID int) (*risk.Assessment, error) {
	assessment, ok := f.latest[athleteID]
	if !ok {
		return nil, risk.ErrAssessmentNotFound
	}
	return assessment, nil
}

type fakeRiskService struct {
	assessed     map[int]*risk.Assessment
	calculated   int
	calculateErr error
	assessCalls  []int
}

func (f *fakeRiskService) Assess(_ context.Context, athleteID int, _ time.Time) (*risk.Assessment, error) {
	f.assessCalls = append(f.assessCalls, athleteID)
	assessment, ok := f.assessed[athleteID]
	if !ok {
		return nil, risk.ErrInsufficientData
	}
	return assessment, nil
}

func (f *fakeRiskService) CalculateAll(_ context.Context, _ time.Time) (int, error) {
	return f.calculated, f.calculateErr
}

type fakeTrainingRepo struct {
	loads []training.TrainingLoad
}

func (f *fakeTrainingRepo) ListForAthlete(_ context.Context, params training.ListParams) ([]training.TrainingLoad, error) {
	listed := make([]training.TrainingLoad, 0, len(f.loads))
	for _, l := range f.loads {
		if l.AthleteID != params.AthleteID {
			continue
		}
		if params.From != nil && l.Date.Before(*params.From) {
			continue
		}
		if params.To != nil && l.Date.After(*params.To) {
			continue
		}
		listed = append(listed, l)
	}
	return listed, nil
}

func storedAssessment(athleteID int, score float64, acwr float64) *risk.Assessment {
	return &risk.Assessment{
		AthleteID:        athleteID,
		Date:             testToday.AddDate(0, 0, -1),
		OverallRiskScore: score,
		RiskLevel:        risk.RiskLevelForScore(score),
		ACWR:             &acwr,
	}
}

func setupDashboardRouterForTests(
	athletesRepo *fakeAthletesRepo,
	assessmentsRepo *fakeAssessmentsRepo,
	riskSvc *fakeRiskService,
	trainingRepo *fakeTrainingRepo,
) *mux.Router {
	r := mux.NewRouter()
	handler := NewHandler(athletesRepo, assessmentsRepo, riskSvc, trainingRepo)
	handler.now = func() time.Time { return testToday }
	handler.SetupRoutes(r.PathPrefix("/dashboard").Subrouter())
	return r
}

func TestTeamOverview(t *testing.T) {
	athletesRepo := &fakeAthletesRepo{
		athletes: []athletes.Athlete{
			{ID: 1, Name: "Mia Kovač", Position: "midfielder", Team: "first"},
			{ID: 2, Name: "Jon Berg", Position: "defender", Team: "first"},
			{ID: 3, Name: "Ana Silva", Position: "forward", Team: "first"},
		},
	}
	assessmentsRepo := &fakeAssessmentsRepo{
		latest: map[int]*risk.Assessment{
			1: storedAssessment(1, 75, 1.6),
			2: storedAssessment(2, 25, 1.05),
		},
	}
	// athlete 3 has no snapshot, gets assessed on the fly
	riskSvc := &fakeRiskService{
		assessed: map[int]*risk.Assessment{
			3: {AthleteID: 3, OverallRiskScore: 45, RiskLevel: risk.RiskLevelMedium},
		},
	}
	router := setupDashboardRouterForTests(athletesRepo, assessmentsRepo, riskSvc, &fakeTrainingRepo{})

	req := httptest.NewRequest("GET", "/dashboard/team-overview", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var overview TeamOverview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &overview))

	assert.Equal(t, 3, overview.TotalAthletes)
	assert.Equal(t, 1, overview.HighRiskCount)
	assert.Equal(t, 1, overview.MediumRiskCount)
	assert.Equal(t, 1, overview.LowRiskCount)
	assert.Equal(t, []int{3}, riskSvc.assessCalls)

	// sorted by risk score, highest first
	require.Len(t, overview.Athletes, 3)
	assert.Equal(t, "Mia Kovač", overview.Athletes[0].Name)
	assert.Equal(t, "Ana Silva", overview.Athletes[1].Name)
	assert.Equal(t, "Jon Berg", overview.Athletes[2].Name)

	require.NotNil(t, overview.Athletes[0].LastAssessmentDate)
	assert.Nil(t, overview.Athletes[1].LastAssessmentDate)
}

func TestTeamOverview_RiskLevelFilter(t *testing.T) {
	athletesRepo := &fakeAthletesRepo{
		athletes: []athletes.Athlete{
			{ID: 1, Name: "Mia Kovač", Team: "first"},
			{ID: 2, Name: "Jon Berg", Team: "first"},
		},
	}
	assessmentsRepo := &fakeAssessmentsRepo{
		latest: map[int]*risk.Assessment{
			1: storedAssessment(1, 75, 1.6),
			2: storedAssessment(2, 25, 1.05),
		},
	}
	router := setupDashboardRouterForTests(athletesRepo, assessmentsRepo, &fakeRiskService{}, &fakeTrainingRepo{})

	req := httptest.NewRequest("GET", "/dashboard/team-overview?riskLevel=high", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var overview TeamOverview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &overview))

	// counts cover the whole team even when the list is filtered
	assert.Equal(t, 2, overview.TotalAthletes)
	assert.Equal(t, 1, overview.HighRiskCount)
	assert.Equal(t, 1, overview.LowRiskCount)
	require.Len(t, overview.Athletes, 1)
	assert.Equal(t, "Mia Kovač", overview.Athletes[0].Name)
}

func TestTeamOverview_NoDataAthleteIsLowRisk(t *testing.T) {
	athletesRepo := &fakeAthletesRepo{
		athletes: []athletes.Athlete{{ID: 1, Name: "Mia Kovač"}},
	}
	router := setupDashboardRouterForTests(
		athletesRepo, &fakeAssessmentsRepo{}, &fakeRiskService{}, &fakeTrainingRepo{},
	)

	req := httptest.NewRequest("GET", "/dashboard/team-overview", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var overview TeamOverview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &overview))
	assert.Equal(t, 1, overview.LowRiskCount)
	require.Len(t, overview.Athletes, 1)
	assert.Equal(t, risk.RiskLevelLow, overview.Athletes[0].RiskLevel)
	assert.Zero(t, overview.Athletes[0].RiskScore)
}

func TestCalculateAllRisks(t *testing.T) {
	riskSvc := &fakeRiskService{calculated: 4}
	router := setupDashboardRouterForTests(
		&fakeAthletesRepo{}, &fakeAssessmentsRepo{}, riskSvc, &fakeTrainingRepo{},
	)

	req := httptest.NewRequest("POST", "/dashboard/calculate-all-risks", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var calcResp CalculateAllResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &calcResp))
	assert.Equal(t, 4, calcResp.CalculatedCount)
	assert.Equal(t, "Calculated risk for 4 athletes", calcResp.Message)
	assert.Empty(t, calcResp.Errors)
}

func TestCalculateAllRisks_PartialFailure(t *testing.T) {
	riskSvc := &fakeRiskService{
		calculated:   2,
		calculateErr: errors.New("athlete 7: db gone"),
	}
	router := setupDashboardRouterForTests(
		&fakeAthletesRepo{}, &fakeAssessmentsRepo{}, riskSvc, &fakeTrainingRepo{},
	)

	req := httptest.NewRequest("POST", "/dashboard/calculate-all-risks", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var calcResp CalculateAllResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &calcResp))
	assert.Equal(t, 2, calcResp.CalculatedCount)
	require.Len(t, calcResp.Errors, 1)
	assert.Contains(t, calcResp.Errors[0], "db gone")
}

func TestCalculateAllRisks_BadTargetDate(t *testing.T) {
	router := setupDashboardRouterForTests(
		&fakeAthletesRepo{}, &fakeAssessmentsRepo{}, &fakeRiskService{}, &fakeTrainingRepo{},
	)

	req := httptest.NewRequest("POST", "/dashboard/calculate-all-risks?targetDate=20.08.2026", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestACWRTrend(t *testing.T) {
	athletesRepo := &fakeAthletesRepo{
		athletes: []athletes.Athlete{{ID: 1, Name: "Mia Kovač"}},
	}
	trainingRepo := &fakeTrainingRepo{}
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		trainingRepo.loads = append(trainingRepo.loads, training.TrainingLoad{
			AthleteID:    1,
			Date:         day.AddDate(0, 0, -i),
			TrainingLoad: 100,
		})
	}
	router := setupDashboardRouterForTests(
		athletesRepo, &fakeAssessmentsRepo{}, &fakeRiskService{}, trainingRepo,
	)

	req := httptest.NewRequest("GET", "/dashboard/athlete/1/acwr-trend?days=7", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var trend ACWRTrend
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &trend))

	assert.Equal(t, 1, trend.AthleteID)
	assert.Equal(t, "Mia Kovač", trend.AthleteName)
	assert.Equal(t, "2026-08-13", trend.StartDate)
	assert.Equal(t, "2026-08-20", trend.EndDate)
	require.Len(t, trend.Data, 8)

	latest := trend.Data[len(trend.Data)-1]
	assert.Equal(t, "2026-08-20", latest.Date)
	assert.InDelta(t, 100, latest.AcuteLoad, 0.001)
	assert.InDelta(t, 100, latest.ChronicLoad, 0.001)
	assert.InDelta(t, 1.0, latest.ACWR, 0.001)
	assert.Equal(t, risk.RiskLevelLow, latest.RiskCategory)
}

func TestACWRTrend_NoData(t *testing.T) {
	athletesRepo := &fakeAthletesRepo{
		athletes: []athletes.Athlete{{ID: 1, Name: "Mia Kovač"}},
	}
	router := setupDashboardRouterForTests(
		athletesRepo, &fakeAssessmentsRepo{}, &fakeRiskService{}, &fakeTrainingRepo{},
	)

	req := httptest.NewRequest("GET", "/dashboard/athlete/1/acwr-trend", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var trend ACWRTrend
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &trend))
	assert.Empty(t, trend.Data)
}

func TestACWRTrend_AthleteNotFound(t *testing.T) {
	router := setupDashboardRouterForTests(
		&fakeAthletesRepo{}, &fakeAssessmentsRepo{}, &fakeRiskService{}, &fakeTrainingRepo{},
	)

	req := httptest.NewRequest("GET", "/dashboard/athlete/99/acwr-trend", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTrainingSummary(t *testing.T) {
	athletesRepo := &fakeAthletesRepo{
		athletes: []athletes.Athlete{{ID: 1, Name: "Mia Kovač"}},
	}
	distance := 8200.0
	highSpeed := 420.0
	trainingRepo := &fakeTrainingRepo{
		loads: []training.TrainingLoad{
			{
				AthleteID: 1, Date: testToday.AddDate(0, 0, -1),
				TrainingLoad: 300, SessionType: "match",
				TotalDistance: &distance, HighSpeedDistance: &highSpeed,
			},
			{
				AthleteID: 1, Date: testToday.AddDate(0, 0, -3),
				TrainingLoad: 150, SessionType: "training",
			},
			{
				AthleteID: 1, Date: testToday.AddDate(0, 0, -5),
				TrainingLoad: 210, SessionType: "training",
			},
		},
	}
	router := setupDashboardRouterForTests(
		athletesRepo, &fakeAssessmentsRepo{}, &fakeRiskService{}, trainingRepo,
	)

	req := httptest.NewRequest("GET", "/dashboard/athlete/1/training-summary", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var summary TrainingSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))

	assert.Equal(t, 28, summary.PeriodDays)
	assert.Equal(t, 3, summary.SessionCount)
	assert.InDelta(t, 660, summary.TotalLoad, 0.001)
	assert.InDelta(t, 220, summary.AverageLoad, 0.001)
	assert.InDelta(t, 300, summary.MaxLoad, 0.001)
	assert.InDelta(t, 150, summary.MinLoad, 0.001)
	assert.InDelta(t, 8200, summary.TotalDistanceMeters, 0.001)
	assert.InDelta(t, 420, summary.TotalHighSpeedDistanceMeters, 0.001)
	assert.Empty(t, summary.Message)

	// oldest first
	require.Len(t, summary.LoadsByDate, 3)
	assert.Equal(t, "2026-08-15", summary.LoadsByDate[0].Date)
	assert.Equal(t, "2026-08-19", summary.LoadsByDate[2].Date)
	assert.Equal(t, "match", summary.LoadsByDate[2].SessionType)
}

func TestTrainingSummary_NoData(t *testing.T) {
	athletesRepo := &fakeAthletesRepo{
		athletes: []athletes.Athlete{{ID: 1, Name: "Mia Kovač"}},
	}
	router := setupDashboardRouterForTests(
		athletesRepo, &fakeAssessmentsRepo{}, &fakeRiskService{}, &fakeTrainingRepo{},
	)

	req := httptest.NewRequest("GET", "/dashboard/athlete/1/training-summary?days=7", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var summary TrainingSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	assert.Equal(t, 0, summary.SessionCount)
	assert.Equal(t, "No training data available", summary.Message)
}

func TestTrainingSummary_BadDays(t *testing.T) {
	athletesRepo := &fakeAthletesRepo{
		athletes: []athletes.Athlete{{ID: 1, Name: "Mia Kovač"}},
	}
	router := setupDashboardRouterForTests(
		athletesRepo, &fakeAssessmentsRepo{}, &fakeRiskService{}, &fakeTrainingRepo{},
	)

	req := httptest.NewRequest("GET", "/dashboard/athlete/1/training-summary?days=-3", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
