package injuries

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

type injuriesRepo interface {
	Add(ctx context.Context, injury Injury) (*Injury, error)
	Get(ctx context.Context, id int) (*Injury, error)
	Update(ctx context.Context, injury *Injury) error
	Delete(ctx context.Context, id int) error
	ListForAthlete(ctx context.Context, params ListParams) ([]Injury, error)
}

type DeleteInjuryResponse struct {
	DeletedID int `json:"deletedId"`
}

type UpdateInjuryResponse struct {
	UpdatedID int `json:"updatedId"`
}

type Handler struct {
	repo injuriesRepo
}

func NewHandler(repo injuriesRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("", handler.HandleAdd).Methods("POST", "OPTIONS").Name("add-injury")
	router.HandleFunc("/{id}", handler.HandleGet).Methods("GET").Name("get-injury")
	router.HandleFunc("/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-injury")
	router.HandleFunc("/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-injury")
	router.HandleFunc("/athlete/{athleteId}", handler.HandleListForAthlete).
		Methods("GET").Name("list-injuries")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.injuries.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var injury Injury
	if err := json.NewDecoder(r.Body).Decode(&injury); err != nil {
		log.Tracef("new injury, unmarshal json params: %s", err)
		http.Error(w, "add injury failed", http.StatusBadRequest)
		return
	}

	if injury.AthleteID == 0 {
		http.Error(w, "error, athlete id empty", http.StatusBadRequest)
		return
	}
	if injury.InjuryType == "" || injury.BodyPart == "" {
		http.Error(w, "error, injury type or body part empty", http.StatusBadRequest)
		return
	}
	if injury.InjuryDate.IsZero() {
		http.Error(w, "error, injury date empty", http.StatusBadRequest)
		return
	}

	addedInjury, err := handler.repo.Add(ctx, injury)
	if err != nil {
		log.Errorf("failed to add injury for athlete %d: %s", injury.AthleteID, err)
		http.Error(w, "error, failed to add injury", http.StatusInternalServerError)
		return
	}

	addedInjuryJson, err := json.Marshal(addedInjury)
	if err != nil {
		log.Errorf("failed to marshal new injury: %s", err)
		http.Error(w, "error, failed to add injury", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedInjuryJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.injuries.get")
	defer span.End()

	id, err := idFromRequest(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	injury, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrInjuryNotFound) {
			http.Error(w, "injury not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get injury %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	injuryJson, err := json.Marshal(injury)
	if err != nil {
		log.Errorf("failed to marshal injury: %s", err)
		http.Error(w, "failed to marshal injury", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, injuryJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.injuries.update")
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

	var injury Injury
	if err := json.NewDecoder(r.Body).Decode(&injury); err != nil {
		log.Errorf("update injury, unmarshal json params: %s", err)
		http.Error(w, "update injury failed", http.StatusBadRequest)
		return
	}
	injury.ID = id

	if err := handler.repo.Update(ctx, &injury); err != nil {
		if errors.Is(err, ErrInjuryNotFound) {
			http.Error(w, "injury not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update injury %d: %s", injury.ID, err)
		http.Error(w, "error, failed to update injury", http.StatusInternalServerError)
		return
	}

	updateRespJson, err := json.Marshal(UpdateInjuryResponse{
		UpdatedID: injury.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.injuries.delete")
	defer span.End()

	id, err := idFromRequest(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrInjuryNotFound) {
			http.Error(w, "injury not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete injury %d: %s", id, err)
		http.Error(w, "injury not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeleteInjuryResponse{
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
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.injuries.listForAthlete")
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

	injuriesList, err := handler.repo.ListForAthlete(ctx, params)
	if err != nil {
		log.Errorf("list injuries for athlete %d: %s", athleteID, err)
		http.Error(w, "failed to get injuries", http.StatusInternalServerError)
		return
	}

	injuriesJson, err := json.Marshal(injuriesList)
	if err != nil {
		log.Errorf("marshal injuries error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, injuriesJson, http.StatusOK)
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
