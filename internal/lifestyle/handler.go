package lifestyle

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

type lifestyleRepo interface {
	Add(ctx context.Context, lifestyleLog LifestyleLog) (*LifestyleLog, error)
	Update(ctx context.Context, lifestyleLog *LifestyleLog) error
	Delete(ctx context.Context, id int) error
	ListForAthlete(ctx context.Context, params ListParams) ([]LifestyleLog, error)
}

type DeleteLifestyleLogResponse struct {
	DeletedID int `json:"deletedId"`
}

type UpdateLifestyleLogResponse struct {
	UpdatedID int `json:"updatedId"`
}

type Handler struct {
	repo lifestyleRepo
}

func NewHandler(repo lifestyleRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("", handler.HandleAdd).Methods("POST", "OPTIONS").Name("add-lifestyle-log")
	router.HandleFunc("/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-lifestyle-log")
	router.HandleFunc("/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-lifestyle-log")
	router.HandleFunc("/athlete/{athleteId}", handler.HandleListForAthlete).
		Methods("GET").Name("list-lifestyle-logs")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.lifestyle.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var lifestyleLog LifestyleLog
	if err := json.NewDecoder(r.Body).Decode(&lifestyleLog); err != nil {
		log.Tracef("new lifestyle log, unmarshal json params: %s", err)
		http.Error(w, "add lifestyle log failed", http.StatusBadRequest)
		return
	}

	if lifestyleLog.AthleteID == 0 {
		http.Error(w, "error, athlete id empty", http.StatusBadRequest)
		return
	}
	if lifestyleLog.Date.IsZero() {
		lifestyleLog.Date = time.Now().Truncate(24 * time.Hour)
	}

	addedLog, err := handler.repo.Add(ctx, lifestyleLog)
	if err != nil {
		log.Errorf("failed to add lifestyle log for athlete %d: %s", lifestyleLog.AthleteID, err)
		http.Error(w, "error, failed to add lifestyle log", http.StatusInternalServerError)
		return
	}

	addedLogJson, err := json.Marshal(addedLog)
	if err != nil {
		log.Errorf("failed to marshal new lifestyle log: %s", err)
		http.Error(w, "error, failed to add lifestyle log", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedLogJson, http.StatusCreated)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.lifestyle.update")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	id, err := idFromRequest(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var lifestyleLog LifestyleLog
	if err := json.NewDecoder(r.Body).Decode(&lifestyleLog); err != nil {
		log.Errorf("update lifestyle log, unmarshal json params: %s", err)
		http.Error(w, "update lifestyle log failed", http.StatusBadRequest)
		return
	}
	lifestyleLog.ID = id

	if err := handler.repo.Update(ctx, &lifestyleLog); err != nil {
		if errors.Is(err, ErrLifestyleLogNotFound) {
			http.Error(w, "lifestyle log not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update lifestyle log %d: %s", lifestyleLog.ID, err)
		http.Error(w, "error, failed to update lifestyle log", http.StatusInternalServerError)
		return
	}

	updateRespJson, err := json.Marshal(UpdateLifestyleLogResponse{
		UpdatedID: lifestyleLog.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.lifestyle.delete")
	defer span.End()

	id, err := idFromRequest(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrLifestyleLogNotFound) {
			http.Error(w, "lifestyle log not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete lifestyle log %d: %s", id, err)
		http.Error(w, "lifestyle log not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeleteLifestyleLogResponse{
		DeletedID: id,
	})
	if err != nil {
		log.Errorf("failed to marshal delete response: %s", err)
		http.Error(w, "failed to marshal delete response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(deleteRespJson))
}

func (handler *Handler) HandleListForAthlete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.lifestyle.listForAthlete")
	defer span.End()

	athleteID, err := idFromRequest(r, "athleteId")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	params := ListParams{AthleteID: athleteID}
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		from, err := time.Parse(time.DateOnly, fromStr)
		if err != nil {
			http.Error(w, "error, invalid <from> date", http.StatusBadRequest)
			return
		}
		params.From = &from
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		to, err := time.Parse(time.DateOnly, toStr)
		if err != nil {
			http.Error(w, "error, invalid <to> date", http.StatusBadRequest)
			return
		}
		params.To = &to
	}

	logs, err := handler.repo.ListForAthlete(ctx, params)
	if err != nil {
		log.Errorf("list lifestyle logs for athlete %d: %s", athleteID, err)
		http.Error(w, "failed to get lifestyle logs", http.StatusInternalServerError)
		return
	}

	logsJson, err := json.Marshal(logs)
	if err != nil {
		log.Errorf("marshal lifestyle logs error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, logsJson, http.StatusOK)
}

func idFromRequest(r *http.Request, varName string) (int, error) {
	idStr := mux.Vars(r)[varName]
	if idStr == "" {
		return 0, errors.New("error, id empty")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, errors.New("error, id NaN")
	}
	return id, nil
}
