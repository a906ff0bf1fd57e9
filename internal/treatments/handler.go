package treatments

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

type treatmentsRepo interface {
	Add(ctx context.Context, treatment Treatment) (*Treatment, error)
	Get(ctx context.Context, id int) (*Treatment, error)
	Update(ctx context.Context, treatment *Treatment) error
	Delete(ctx context.Context, id int) error
	ListForAthlete(ctx context.Context, params ListParams) ([]Treatment, error)
}

type DeleteTreatmentResponse struct {
	DeletedID int `json:"deletedId"`
}

type UpdateTreatmentResponse struct {
	UpdatedID int `json:"updatedId"`
}

type Handler struct {
	repo treatmentsRepo
}

func NewHandler(repo treatmentsRepo) *Handler {
	return &Handler{
		repo: repo,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("", handler.HandleAdd).Methods("POST", "OPTIONS").Name("add-treatment")
	router.HandleFunc("/{id}", handler.HandleGet).Methods("GET").Name("get-treatment")
	router.HandleFunc("/{id}", handler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-treatment")
	router.HandleFunc("/{id}", handler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-treatment")
	router.HandleFunc("/athlete/{athleteId}", handler.HandleListForAthlete).
		Methods("GET").Name("list-treatments")
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.treatments.add")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var treatment Treatment
	if err := json.NewDecoder(r.Body).Decode(&treatment); err != nil {
		log.Tracef("new treatment, unmarshal json params: %s", err)
		http.Error(w, "add treatment failed", http.StatusBadRequest)
		return
	}

	if treatment.AthleteID == 0 {
		http.Error(w, "error, athlete id empty", http.StatusBadRequest)
		return
	}
	if treatment.Modality == "" {
		http.Error(w, "error, modality empty", http.StatusBadRequest)
		return
	}
	if treatment.Date.IsZero() {
		treatment.Date = time.Now().Truncate(24 * time.Hour)
	}

	addedTreatment, err := handler.repo.Add(ctx, treatment)
	if err != nil {
		log.Errorf("failed to add treatment for athlete %d: %s", treatment.AthleteID, err)
		http.Error(w, "error, failed to add treatment", http.StatusInternalServerError)
		return
	}

	addedTreatmentJson, err := json.Marshal(addedTreatment)
	if err != nil {
		log.Errorf("failed to marshal new treatment: %s", err)
		http.Error(w, "error, failed to add treatment", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, addedTreatmentJson, http.StatusCreated)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.treatments.get")
	defer span.End()

	id, err := idFromRequest(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	treatment, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTreatmentNotFound) {
			http.Error(w, "treatment not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to get treatment %d: %s", id, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	treatmentJson, err := json.Marshal(treatment)
	if err != nil {
		log.Errorf("failed to marshal treatment: %s", err)
		http.Error(w, "failed to marshal treatment", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, treatmentJson, http.StatusOK)
}

func (handler *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.treatments.update")
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

	var treatment Treatment
	if err := json.NewDecoder(r.Body).Decode(&treatment); err != nil {
		log.Errorf("update treatment, unmarshal json params: %s", err)
		http.Error(w, "update treatment failed", http.StatusBadRequest)
		return
	}
	treatment.ID = id

	if err := handler.repo.Update(ctx, &treatment); err != nil {
		if errors.Is(err, ErrTreatmentNotFound) {
			http.Error(w, "treatment not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to update treatment %d: %s", treatment.ID, err)
		http.Error(w, "error, failed to update treatment", http.StatusInternalServerError)
		return
	}

	updateRespJson, err := json.Marshal(UpdateTreatmentResponse{
		UpdatedID: treatment.ID,
	})
	if err != nil {
		log.Errorf("failed to marshal update response: %s", err)
		http.Error(w, "failed to marshal update response", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, string(updateRespJson))
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.treatments.delete")
	defer span.End()

	id, err := idFromRequest(r, "id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrTreatmentNotFound) {
			http.Error(w, "treatment not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete treatment %d: %s", id, err)
		http.Error(w, "treatment not deleted", http.StatusInternalServerError)
		return
	}

	deleteRespJson, err := json.Marshal(DeleteTreatmentResponse{
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
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.treatments.listForAthlete")
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

	treatmentsList, err := handler.repo.ListForAthlete(ctx, params)
	if err != nil {
		log.Errorf("list treatments for athlete %d: %s", athleteID, err)
		http.Error(w, "failed to get treatments", http.StatusInternalServerError)
		return
	}

	treatmentsJson, err := json.Marshal(treatmentsList)
	if err != nil {
		log.Errorf("marshal treatments error: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, treatmentsJson, http.StatusOK)
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
