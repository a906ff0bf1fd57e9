package athletes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/teampulse/teampulse/internal/risk"
	"github.com/teampulse/teampulse/internal/telemetry/tracing"
	"github.com/teampulse/teampulse/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type athletesRepo interface {
	Add(ctx context.Context, athlete Athlete) (*Athlete, error)
	Get(ctx context.Context, id int) (*Athlete, error)
	List(ctx context.Context, params ListParams) ([]Athlete, error)
	Update(ctx context.Context, athlete *Athlete) error
	Delete(ctx context.Context, id int) error
}

type riskRepo interface {
	GetLatest(ctx context.Context, athleteID int) (*risk.Assessment, error)
}

type injuriesRepo interface {
	CountSince(ctx context.Context, athleteID int, since time.Time) (int, error)
	LastInjuryDate(ctx context.Context, athleteID int) (*time.Time, error)
}

type DeleteAthleteResponse struct {
	DeletedID int `json:"deletedId"`
}

type UpdateAthleteResponse struct {
	UpdatedID int `json:"updatedId"`
}

// AthleteDetail is the single-athlete view, enriched with the athlete's
// current risk standing and injury recency.
type AthleteDetail struct {
	Athlete
	CurrentRiskLevel    *string  `json:"currentRiskLevel"`
	CurrentRiskScore    *float64 `json:"currentRiskScore"`
	LatestACWR          *float64 `json:"latestAcwr"`
	RecentInjuriesCount int      `json:"recentInjuriesCount"`
	DaysSinceLastInjury *int     `json:"daysSinceLastInjury"`
}

type Handler struct {
	repo         athletesRepo
	riskRepo     riskRepo
	injuriesRepo injuriesRepo
}

func NewHandler(repo athletesRepo, riskRepo riskRepo, injuriesRepo injuriesRepo) *Handler {
	return &Handler{
		repo:         repo,
		riskRepo:     riskRepo,
		injuriesRepo: injuriesRepo,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("", handler.HandleAdd).Methods("POST", "OPTIONS").Name("add-athlete")
	router.HandleFunc("", handler.HandleList).Methods("GET").Name("list-athletes")
	router.HandleFunc("/{id}", handler.HandleGet).Methods("GET").Name("get-athlete")
	router.HandleFunc("/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-athlete")
	router.HandleFunc("/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-athlete")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.athletes.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var athlete Athlete
	if err := json.NewDecoder(r.Body).Decode(&athlete); err != nil {
		log.Tracef("new athlete, unmarshal json params: %s", err)
		http.Error(w, "add athlete failed", http.StatusBadRequest)
		return
	}

	if athlete.Name == "" {
		http.Error(w, "error, athlete name empty", http.StatusBadRequest)
		return
	}

	addedAthlete, err := handler.repo.Add(ctx, athlete)
	if err != nil {
		log.Errorf("failed to add new athlete [%s]: %s", athlete.Name, err)
		http.Error(w, "error, failed to add new athlete", http.StatusInternalServerError)
		return
	}

	addedAthleteJson, err := json.Marshal(addedAthlete)
	if err != nil {
		log.Errorf("failed to marshal new athlete: %s", err)
		http.Error(w, "error, failed to add new athlete", http.StatusInternalServerError)
		return
	}

	log.Debugf("new athlete added: %s", addedAthleteJson)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedAthleteJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.athletes.list")
	defer span.End()

	athletesList, err := handler.repo.List(ctx, ListParams{
		Team: r.URL.Query().Get("team"),
	})
	if err != nil {
		log.Errorf("list athletes error: %s", err)
		http.Error(w, "failed to get athletes", http.StatusInternalServerError)
		return
	}

	athletesJson, err := json.Marshal(athletesList)
	if err != nil {
		log.Errorf("marshal athletes error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, athletesJson, http.StatusOK)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.athletes.get")
	defer span.End()

	id, err := athleteIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	athlete, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAthleteNotFound) {
			http.Error(w, "athlete not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get athlete %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	detail := AthleteDetail{Athlete: *athlete}

	latest, err := handler.riskRepo.GetLatest(ctx, id)
	if err != nil && !errors.Is(err, risk.ErrAssessmentNotFound) {
		log.Errorf("failed to get latest assessment for athlete %d: %s", id, err)
	} else if latest != nil {
		detail.CurrentRiskLevel = &latest.RiskLevel
		detail.CurrentRiskScore = &latest.OverallRiskScore
		detail.LatestACWR = latest.ACWR
	}

	sixMonthsAgo := time.Now().AddDate(0, 0, -180)
	recentInjuries, err := handler.injuriesRepo.CountSince(ctx, id, sixMonthsAgo)
	if err != nil {
		log.Errorf("failed to count recent injuries for athlete %d: %s", id, err)
	}
	detail.RecentInjuriesCount = recentInjuries

	lastInjuryDate, err := handler.injuriesRepo.LastInjuryDate(ctx, id)
	if err != nil {
		log.Errorf("failed to get last injury date for athlete %d: %s", id, err)
	} else if lastInjuryDate != nil {
		daysSince := int(time.Since(*lastInjuryDate).Hours() / 24)
		detail.DaysSinceLastInjury = &daysSince
	}

	detailJson, err := json.Marshal(detail)
	if err != nil {
		log.Errorf("failed to marshal athlete detail: %s", err)
		http.Error(w, "failed to marshal athlete", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, detailJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.athletes.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	id, err := athleteIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var athlete Athlete
	if err := json.NewDecoder(r.Body).Decode(&athlete); err != nil {
		log.Errorf("update athlete, unmarshal json params: %s", err)
		http.Error(w, "update athlete failed", http.StatusBadRequest)
		return
	}
	athlete.ID = id

	if athlete.Name == "" {
		http.Error(w, "error, athlete name empty", http.StatusBadRequest)
		return
	}

	if err := handler.repo.Update(ctx, &athlete); err != nil {
		if errors.Is(err, ErrAthleteNotFound) {
			http.Error(w, "athlete not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update athlete %d: %s", athlete.ID, err)
		http.Error(w, "error, failed to update athlete", http.StatusInternalServerError)
		return
	}

	updateRespJson, err := json.Marshal(UpdateAthleteResponse{
		UpdatedID: athlete.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.athletes.delete")
	defer span.End()

	id, err := athleteIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAthleteNotFound) {
			http.Error(w, "athlete not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete athlete %d: %s", id, err)
		http.Error(w, "athlete not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeleteAthleteResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func athleteIDFromRequest(r *http.Request) (int, error) {
	idStr := mux.Vars(r)["id"]
	if idStr == "" {
		return 0, errors.New("error, id empty")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, errors.New("error, id NaN")
	}
	return id, nil
}
