package risk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/teampulse/teampulse/internal/telemetry/tracing"
	"github.com/teampulse/teampulse/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type assessmentCalculator interface {
	Calculate(ctx context.Context, athleteID int, date time.Time) (*Assessment, error)
}

type historyRepo interface {
	GetLatest(ctx context.Context, athleteID int) (*Assessment, error)
	ListForAthlete(ctx context.Context, athleteID int, from, to *time.Time) ([]Assessment, error)
}

type CalculateRequest struct {
	TargetDate string `json:"targetDate"`
}

type Handler struct {
	service assessmentCalculator
	repo    historyRepo
}

func NewHandler(service assessmentCalculator, repo historyRepo) *Handler {
	return &Handler{
		service: service,
		repo:    repo,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/athlete/{id}/calculate", handler.HandleCalculate).Methods("POST", "OPTIONS").Name("calculate-risk")
	router.HandleFunc("/athlete/{id}/latest", handler.HandleGetLatest).Methods("GET").Name("latest-risk")
	router.HandleFunc("/athlete/{id}/history", handler.HandleGetHistory).Methods("GET").Name("risk-history")
}

func (handler *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.risk.calculate")
	defer span.End()

	id, err := athleteIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	targetDate := time.Now().UTC()
	if r.Body != nil && r.ContentLength > 0 {
		var calcReq CalculateRequest
		if err := json.NewDecoder(r.Body).Decode(&calcReq); err != nil {
			log.Tracef("calculate risk, unmarshal json params: %s", err)
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if calcReq.TargetDate != "" {
			targetDate, err = time.Parse(time.DateOnly, calcReq.TargetDate)
			if err != nil {
				http.Error(w, "invalid target date, use YYYY-MM-DD", http.StatusBadRequest)
				return
			}
		}
	}

	assessment, err := handler.service.Calculate(ctx, id, targetDate)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownAthlete):
			http.Error(w, "athlete not found", http.StatusNotFound)
		case errors.Is(err, ErrInsufficientData):
			http.Error(w, "insufficient training data for risk assessment", http.StatusUnprocessableEntity)
		default:
			log.Errorf("failed to calculate risk for athlete %d: %s", id, err)
			http.Error(w, "risk calculation failed", http.StatusInternalServerError)
		}
		return
	}

	assessmentJson, err := json.Marshal(assessment)
	if err != nil {
		log.Errorf("failed to marshal assessment: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	log.Debugf("risk calculated for athlete %d: score %.2f [%s]", id, assessment.OverallRiskScore, assessment.RiskLevel)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, assessmentJson, http.StatusCreated)
}

func (handler *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.risk.getLatest")
	defer span.End()

	id, err := athleteIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	assessment, err := handler.repo.GetLatest(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAssessmentNotFound) {
			http.Error(w, "no risk assessment found for athlete", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get latest assessment for athlete %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	assessmentJson, err := json.Marshal(assessment)
	if err != nil {
		log.Errorf("failed to marshal assessment: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, assessmentJson, http.StatusOK)
}

func (handler *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.risk.getHistory")
	defer span.End()

	id, err := athleteIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	from, err := dateQueryParam(r, "from")
	if err != nil {
		http.Error(w, "invalid from date, use YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	to, err := dateQueryParam(r, "to")
	if err != nil {
		http.Error(w, "invalid to date, use YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	assessments, err := handler.repo.ListForAthlete(ctx, id, from, to)
	if err != nil {
		log.Errorf("failed to list assessments for athlete %d: %s", id, err)
		http.Error(w, "failed to get risk history", http.StatusInternalServerError)
		return
	}

	assessmentsJson, err := json.Marshal(assessments)
	if err != nil {
		log.Errorf("failed to marshal assessments: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, assessmentsJson, http.StatusOK)
}

func athleteIDFromRequest(r *http.Request) (int, error) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		return 0, errors.New("error, athlete id empty")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, errors.New("error, athlete id NaN")
	}
	return id, nil
}

func dateQueryParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
