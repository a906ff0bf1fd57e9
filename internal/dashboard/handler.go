package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/teampulse/teampulse/internal/athletes"
	"github.com/teampulse/teampulse/internal/risk"
	"github.com/teampulse/teampulse/internal/telemetry/tracing"
	"github.com/teampulse/teampulse/internal/training"
	"github.com/teampulse/teampulse/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

type athletesRepo interface {
	Get(ctx context.Context, id int) (*athletes.Athlete, error)
	List(ctx context.Context, params athletes.ListParams) ([]athletes.Athlete, error)
}

type assessmentsRepo interface {
	GetLatest(ctx context.Context, athleteID int) (*risk.Assessment, error)
}

type riskService interface {
	Assess(ctx context.Context, athleteID int, date time.Time) (*risk.Assessment, error)
	CalculateAll(ctx context.Context, date time.Time) (int, error)
}

type trainingRepo interface {
	ListForAthlete(ctx context.Context, params training.ListParams) ([]training.TrainingLoad, error)
}

// AthleteRiskSummary is one row of the team overview, the coach's morning
// traffic-light view.
type AthleteRiskSummary struct {
	ID                 int        `json:"id"`
	Name               string     `json:"name"`
	Position           string     `json:"position"`
	RiskLevel          string     `json:"riskLevel"`
	RiskScore          float64    `json:"riskScore"`
	ACWR               *float64   `json:"acwr"`
	LastAssessmentDate *time.Time `json:"lastAssessmentDate"`
}

type TeamOverview struct {
	TotalAthletes   int                  `json:"totalAthletes"`
	HighRiskCount   int                  `json:"highRiskCount"`
	MediumRiskCount int                  `json:"mediumRiskCount"`
	LowRiskCount    int                  `json:"lowRiskCount"`
	Athletes        []AthleteRiskSummary `json:"athletes"`
}

type CalculateAllResponse struct {
	Message         string   `json:"message"`
	CalculatedCount int      `json:"calculatedCount"`
	Errors          []string `json:"errors"`
}

type ACWRTrendPoint struct {
	Date         string  `json:"date"`
	AcuteLoad    float64 `json:"acuteLoad"`
	ChronicLoad  float64 `json:"chronicLoad"`
	ACWR         float64 `json:"acwr"`
	RiskCategory string  `json:"riskCategory"`
}

type ACWRTrend struct {
	AthleteID   int              `json:"athleteId"`
	AthleteName string           `json:"athleteName"`
	StartDate   string           `json:"startDate"`
	EndDate     string           `json:"endDate"`
	Data        []ACWRTrendPoint `json:"data"`
}

type LoadByDate struct {
	Date         string  `json:"date"`
	TrainingLoad float64 `json:"trainingLoad"`
	SessionType  string  `json:"sessionType"`
}

type TrainingSummary struct {
	AthleteID    int    `json:"athleteId"`
	AthleteName  string `json:"athleteName"`
	PeriodDays   int    `json:"periodDays"`
	SessionCount int    `json:"sessionCount"`
	Message      string `json:"message,omitempty"`

	TotalLoad                    float64      `json:"totalLoad"`
	AverageLoad                  float64      `json:"averageLoad"`
	MaxLoad                      float64      `json:"maxLoad"`
	MinLoad                      float64      `json:"minLoad"`
	TotalDistanceMeters          float64      `json:"totalDistanceMeters"`
	TotalHighSpeedDistanceMeters float64      `json:"totalHighSpeedDistanceMeters"`
	LoadsByDate                  []LoadByDate `json:"loadsByDate"`
}

type Handler struct {
	athletesRepo    athletesRepo
	assessmentsRepo assessmentsRepo
	riskService     riskService
	trainingRepo    trainingRepo
	now             func() time.Time
}

func NewHandler(
	athletesRepo athletesRepo,
	assessmentsRepo assessmentsRepo,
	riskService riskService,
	trainingRepo trainingRepo,
) *Handler {
	return &Handler{
		athletesRepo:    athletesRepo,
		assessmentsRepo: assessmentsRepo,
		riskService:     riskService,
		trainingRepo:    trainingRepo,
		now:             time.Now,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/team-overview", handler.HandleTeamOverview).Methods("GET").Name("team-overview")
	router.HandleFunc("/calculate-all-risks", handler.HandleCalculateAll).Methods("POST", "OPTIONS").Name("calculate-all-risks")
	router.HandleFunc("/athlete/{id}/acwr-trend", handler.HandleACWRTrend).Methods("GET").Name("acwr-trend")
	router.HandleFunc("/athlete/{id}/training-summary", handler.HandleTrainingSummary).Methods("GET").Name("training-summary")
}

// HandleTeamOverview returns the whole squad with current risk standing.
// Athletes without a stored snapshot get assessed on the fly (not
// persisted); athletes without any training data show up as low risk.
func (handler *Handler) HandleTeamOverview(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.dashboard.teamOverview")
	defer span.End()

	levelFilter := r.URL.Query().Get("riskLevel")

	athletesList, err := handler.athletesRepo.List(ctx, athletes.ListParams{
		Team: r.URL.Query().Get("team"),
	})
	if err != nil {
		log.Errorf("team overview, list athletes: %s", err)
		http.Error(w, "failed to get team overview", http.StatusInternalServerError)
		return
	}

	overview := TeamOverview{
		TotalAthletes: len(athletesList),
		Athletes:      make([]AthleteRiskSummary, 0, len(athletesList)),
	}

	today := handler.now().UTC()
	for _, athlete := range athletesList {
		summary := AthleteRiskSummary{
			ID:       athlete.ID,
			Name:     athlete.Name,
			Position: athlete.Position,
		}

		latest, err := handler.assessmentsRepo.GetLatest(ctx, athlete.ID)
		switch {
		case err == nil:
			summary.RiskLevel = latest.RiskLevel
			summary.RiskScore = latest.OverallRiskScore
			summary.ACWR = latest.ACWR
			assessmentDate := latest.Date
			summary.LastAssessmentDate = &assessmentDate
		case errors.Is(err, risk.ErrAssessmentNotFound):
			assessment, assessErr := handler.riskService.Assess(ctx, athlete.ID, today)
			if assessErr != nil {
				if !errors.Is(assessErr, risk.ErrInsufficientData) {
					log.Errorf("team overview, assess athlete %d: %s", athlete.ID, assessErr)
				}
				// nothing to go on, show up as low risk
				summary.RiskLevel = risk.RiskLevelLow
			} else {
				summary.RiskLevel = assessment.RiskLevel
				summary.RiskScore = assessment.OverallRiskScore
				summary.ACWR = assessment.ACWR
			}
		default:
			log.Errorf("team overview, latest assessment for athlete %d: %s", athlete.ID, err)
			http.Error(w, "failed to get team overview", http.StatusInternalServerError)
			return
		}

		switch summary.RiskLevel {
		case risk.RiskLevelHigh:
			overview.HighRiskCount++
		case risk.RiskLevelMedium:
			overview.MediumRiskCount++
		default:
			overview.LowRiskCount++
		}

		// the level filter narrows the list, not the counts
		if levelFilter != "" && summary.RiskLevel != levelFilter {
			continue
		}

		overview.Athletes = append(overview.Athletes, summary)
	}

	sort.SliceStable(overview.Athletes, func(i, j int) bool {
		return overview.Athletes[i].RiskScore > overview.Athletes[j].RiskScore
	})

	overviewJson, err := json.Marshal(overview)
	if err != nil {
		log.Errorf("team overview, marshal: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, overviewJson, http.StatusOK)
}

func (handler *Handler) HandleCalculateAll(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.dashboard.calculateAll")
	defer span.End()

	targetDate := handler.now().UTC()
	if rawDate := r.URL.Query().Get("targetDate"); rawDate != "" {
		parsed, err := time.Parse(time.DateOnly, rawDate)
		if err != nil {
			http.Error(w, "invalid target date, use YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		targetDate = parsed
	}

	calculated, err := handler.riskService.CalculateAll(ctx, targetDate)
	if err != nil {
		log.Errorf("calculate all risks: %s", err)
	}

	calcResp := CalculateAllResponse{
		Message:         fmt.Sprintf("Calculated risk for %d athletes", calculated),
		CalculatedCount: calculated,
		Errors:          make([]string, 0),
	}
	for _, calcErr := range multierr.Errors(err) {
		calcResp.Errors = append(calcResp.Errors, calcErr.Error())
	}

	calcRespJson, err := json.Marshal(calcResp)
	if err != nil {
		log.Errorf("calculate all risks, marshal: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, calcRespJson, http.StatusOK)
}

// HandleACWRTrend charts the acute/chronic ratio day by day. Days with no
// chronic baseline are left out of the series rather than plotted as zero.
func (handler *Handler) HandleACWRTrend(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.dashboard.acwrTrend")
	defer span.End()

	athlete, ok := handler.athleteFromRequest(ctx, w, r)
	if !ok {
		return
	}

	days, err := daysQueryParam(r, 56)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	endDate := truncateToDay(handler.now().UTC())
	startDate := endDate.AddDate(0, 0, -days)

	// one wide fetch covers the chronic window behind the oldest trend day
	loadsFrom := startDate.AddDate(0, 0, -28)
	loads, err := handler.trainingRepo.ListForAthlete(ctx, training.ListParams{
		AthleteID: athlete.ID,
		From:      &loadsFrom,
		To:        &endDate,
	})
	if err != nil {
		log.Errorf("acwr trend, list loads for athlete %d: %s", athlete.ID, err)
		http.Error(w, "failed to get acwr trend", http.StatusInternalServerError)
		return
	}

	records := make([]risk.LoadRecord, 0, len(loads))
	for _, l := range loads {
		records = append(records, risk.LoadRecord{Date: l.Date, Load: l.TrainingLoad})
	}

	trend := ACWRTrend{
		AthleteID:   athlete.ID,
		AthleteName: athlete.Name,
		StartDate:   startDate.Format(time.DateOnly),
		EndDate:     endDate.Format(time.DateOnly),
		Data:        make([]ACWRTrendPoint, 0, days+1),
	}

	for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
		acute, chronic, acwr := risk.LoadWindows(records, d)
		if acwr == nil {
			continue
		}
		trend.Data = append(trend.Data, ACWRTrendPoint{
			Date:         d.Format(time.DateOnly),
			AcuteLoad:    round2(acute),
			ChronicLoad:  round2(chronic),
			ACWR:         round2(*acwr),
			RiskCategory: risk.ACWRCategory(*acwr),
		})
	}

	trendJson, err := json.Marshal(trend)
	if err != nil {
		log.Errorf("acwr trend, marshal: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, trendJson, http.StatusOK)
}

func (handler *Handler) HandleTrainingSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.dashboard.trainingSummary")
	defer span.End()

	athlete, ok := handler.athleteFromRequest(ctx, w, r)
	if !ok {
		return
	}

	days, err := daysQueryParam(r, 28)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	endDate := truncateToDay(handler.now().UTC())
	startDate := endDate.AddDate(0, 0, -days)

	loads, err := handler.trainingRepo.ListForAthlete(ctx, training.ListParams{
		AthleteID: athlete.ID,
		From:      &startDate,
		To:        &endDate,
	})
	if err != nil {
		log.Errorf("training summary, list loads for athlete %d: %s", athlete.ID, err)
		http.Error(w, "failed to get training summary", http.StatusInternalServerError)
		return
	}

	summary := TrainingSummary{
		AthleteID:    athlete.ID,
		AthleteName:  athlete.Name,
		PeriodDays:   days,
		SessionCount: len(loads),
		LoadsByDate:  make([]LoadByDate, 0, len(loads)),
	}

	if len(loads) == 0 {
		summary.Message = "No training data available"
		handler.writeTrainingSummary(w, summary)
		return
	}

	// oldest first for charting
	sort.Slice(loads, func(i, j int) bool {
		return loads[i].Date.Before(loads[j].Date)
	})

	summary.MaxLoad = loads[0].TrainingLoad
	summary.MinLoad = loads[0].TrainingLoad
	for _, l := range loads {
		summary.TotalLoad += l.TrainingLoad
		if l.TrainingLoad > summary.MaxLoad {
			summary.MaxLoad = l.TrainingLoad
		}
		if l.TrainingLoad < summary.MinLoad {
			summary.MinLoad = l.TrainingLoad
		}
		if l.TotalDistance != nil {
			summary.TotalDistanceMeters += *l.TotalDistance
		}
		if l.HighSpeedDistance != nil {
			summary.TotalHighSpeedDistanceMeters += *l.HighSpeedDistance
		}
		summary.LoadsByDate = append(summary.LoadsByDate, LoadByDate{
			Date:         l.Date.Format(time.DateOnly),
			TrainingLoad: l.TrainingLoad,
			SessionType:  l.SessionType,
		})
	}

	summary.AverageLoad = round2(summary.TotalLoad / float64(len(loads)))
	summary.TotalLoad = round2(summary.TotalLoad)
	summary.TotalDistanceMeters = round2(summary.TotalDistanceMeters)
	summary.TotalHighSpeedDistanceMeters = round2(summary.TotalHighSpeedDistanceMeters)

	handler.writeTrainingSummary(w, summary)
}

func (handler *Handler) writeTrainingSummary(w http.ResponseWriter, summary TrainingSummary) {
	summaryJson, err := json.Marshal(summary)
	if err != nil {
		log.Errorf("training summary, marshal: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, summaryJson, http.StatusOK)
}

func (handler *Handler) athleteFromRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (*athletes.Athlete, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "error, athlete id NaN", http.StatusBadRequest)
		return nil, false
	}

	athlete, err := handler.athletesRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, athletes.ErrAthleteNotFound) {
			http.Error(w, "athlete not found", http.StatusNotFound)
			return nil, false
		}
		log.Errorf("failed to get athlete %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}

	return athlete, true
}

func daysQueryParam(r *http.Request, defaultDays int) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultDays, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days <= 0 {
		return 0, errors.New("error, days must be a positive number")
	}
	return days, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
