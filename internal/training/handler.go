package training

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

type trainingRepo interface {
	Add(ctx context.Context, load TrainingLoad) (*TrainingLoad, error)
	Get(ctx context.Context, id int) (*TrainingLoad, error)
	Update(ctx context.Context, load *TrainingLoad) error
	Delete(ctx context.Context, id int) error
	ListForAthlete(ctx context.Context, params ListParams) ([]TrainingLoad, error)
}

type DeleteTrainingLoadResponse struct {
	DeletedID int `json:"deletedId"`
}

type UpdateTrainingLoadResponse struct {
	UpdatedID int `json:"updatedId"`
}

type Handler struct {
	repo trainingRepo
}

func NewHandler(repo trainingRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("", handler.HandleAdd).Methods("POST", "OPTIONS").Name("add-training-load")
	router.HandleFunc("/{id}", handler.HandleGet).Methods("GET").Name("get-training-load")
	router.HandleFunc("/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-training-load")
	router.HandleFunc("/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-training-load")
	router.HandleFunc("/athlete/{athleteId}", handler.HandleListForAthlete).
		Methods("GET").Name("list-training-loads")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var load TrainingLoad
	if err := json.NewDecoder(r.Body).Decode(&load); err != nil {
		log.Tracef("new training load, unmarshal json params: %s", err)
		http.Error(w, "add training load failed", http.StatusBadRequest)
		return
	}

	if load.AthleteID == 0 {
		http.Error(w, "error, athlete id empty", http.StatusBadRequest)
		return
	}
	if load.TrainingLoad < 0 {
		http.Error(w, "error, training load negative", http.StatusBadRequest)
		return
	}
	if load.Date.IsZero() {
		load.Date = time.Now().Truncate(24 * time.Hour)
	}

	addedLoad, err := handler.repo.Add(ctx, load)
	if err != nil {
		log.Errorf("failed to add training load for athlete %d: %s", load.AthleteID, err)
		http.Error(w, "error, failed to add training load", http.StatusInternalServerError)
		return
	}

	addedLoadJson, err := json.Marshal(addedLoad)
	if err != nil {
		log.Errorf("failed to marshal new training load: %s", err)
		http.Error(w, "error, failed to add training load", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedLoadJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.get")
	defer span.End()

	id, err := idFromRequest(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	load, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTrainingLoadNotFound) {
			http.Error(w, "training load not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get training load %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	loadJson, err := json.Marshal(load)
	if err != nil {
		log.Errorf("failed to marshal training load: %s", err)
		http.Error(w, "failed to marshal training load", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, loadJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.update")
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

	var load TrainingLoad
	if err := json.NewDecoder(r.Body).Decode(&load); err != nil {
		log.Errorf("update training load, unmarshal json params: %s", err)
		http.Error(w, "update training load failed", http.StatusBadRequest)
		return
	}
	load.ID = id

	if err := handler.repo.Update(ctx, &load); err != nil {
		if errors.Is(err, ErrTrainingLoadNotFound) {
			http.Error(w, "training load not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update training load %d: %s", load.ID, err)
		http.Error(w, "error, failed to update training load", http.StatusInternalServerError)
		return
	}

	updateRespJson, err := json.Marshal(UpdateTrainingLoadResponse{
		UpdatedID: load.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.delete")
	defer span.End()

	id, err := idFromRequest(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrTrainingLoadNotFound) {
			http.Error(w, "training load not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete training load %d: %s", id, err)
		http.Error(w, "training load not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeleteTrainingLoadResponse{
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
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.training.listForAthlete")
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

	loads, err := handler.repo.ListForAthlete(ctx, params)
	if err != nil {
		log.Errorf("list training loads for athlete %d: %s", athleteID, err)
		http.Error(w, "failed to get training loads", http.StatusInternalServerError)
		return
	}

	loadsJson, err := json.Marshal(loads)
	if err != nil {
		log.Errorf("marshal training loads error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, loadsJson, http.StatusOK)
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
