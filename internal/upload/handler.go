package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/teampulse/teampulse/internal/athletes"
	"github.com/teampulse/teampulse/internal/injuries"
	"github.com/teampulse/teampulse/internal/lifestyle"
	"github.com/teampulse/teampulse/internal/telemetry/metrics"
	"github.com/teampulse/teampulse/internal/telemetry/tracing"
	"github.com/teampulse/teampulse/internal/training"
	"github.com/teampulse/teampulse/internal/treatments"
	"github.com/teampulse/teampulse/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// cap the error list in the response, a broken 10k-row file should not
// produce a 10k-line error payload
const maxReportedErrors = 10

type athletesRepo interface {
	Get(ctx context.Context, id int) (*athletes.Athlete, error)
	GetByName(ctx context.Context, name string) (*athletes.Athlete, error)
}

type trainingRepo interface {
	Add(ctx context.Context, load training.TrainingLoad) (*training.TrainingLoad, error)
}

type lifestyleRepo interface {
	Add(ctx context.Context, lifestyleLog lifestyle.LifestyleLog) (*lifestyle.LifestyleLog, error)
}

type treatmentsRepo interface {
	Add(ctx context.Context, treatment treatments.Treatment) (*treatments.Treatment, error)
}

type injuriesRepo interface {
	Add(ctx context.Context, injury injuries.Injury) (*injuries.Injury, error)
}

type UploadResponse struct {
	Message      string   `json:"message"`
	CreatedCount int      `json:"createdCount"`
	Errors       []string `json:"errors"`
}

// Handler ingests vendor CSV exports (wearable loads, wellness logs,
// treatment and injury registers) row by row. One bad row is reported and
// skipped, it never fails the whole file.
type Handler struct {
	athletesRepo   athletesRepo
	trainingRepo   trainingRepo
	lifestyleRepo  lifestyleRepo
	treatmentsRepo treatmentsRepo
	injuriesRepo   injuriesRepo
	metricsManager *metrics.Manager
}

func NewHandler(
	athletesRepo athletesRepo,
	trainingRepo trainingRepo,
	lifestyleRepo lifestyleRepo,
	treatmentsRepo treatmentsRepo,
	injuriesRepo injuriesRepo,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		athletesRepo:   athletesRepo,
		trainingRepo:   trainingRepo,
		lifestyleRepo:  lifestyleRepo,
		treatmentsRepo: treatmentsRepo,
		injuriesRepo:   injuriesRepo,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/training-loads", handler.HandleTrainingLoads).Methods("POST", "OPTIONS").Name("upload-training-loads")
	router.HandleFunc("/lifestyle", handler.HandleLifestyle).Methods("POST", "OPTIONS").Name("upload-lifestyle")
	router.HandleFunc("/treatments", handler.HandleTreatments).Methods("POST", "OPTIONS").Name("upload-treatments")
	router.HandleFunc("/injuries", handler.HandleInjuries).Methods("POST", "OPTIONS").Name("upload-injuries")
}

func (handler *Handler) HandleTrainingLoads(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.upload.trainingLoads")
	defer span.End()

	handler.ingest(ctx, w, r, "training load", func(ctx context.Context, row csvRow, athleteID int) error {
		rawDate, ok := row.get("date")
		if !ok {
			return fmt.Errorf("no date specified")
		}
		date, err := parseDate(rawDate)
		if err != nil {
			return fmt.Errorf("invalid date [%s]", rawDate)
		}

		rawLoad, ok := row.get("training_load", "load", "player_load")
		if !ok {
			return fmt.Errorf("no training_load value found")
		}
		loadValue, err := strconv.ParseFloat(rawLoad, 64)
		if err != nil {
			return fmt.Errorf("invalid training_load [%s]", rawLoad)
		}

		load := training.TrainingLoad{
			AthleteID:    athleteID,
			Date:         date,
			TrainingLoad: loadValue,
			SessionType:  row.getOr("session_type", ""),
		}
		load.TotalDistance = row.floatPtr("total_distance")
		load.HighSpeedDistance = row.floatPtr("high_speed_distance")
		load.SprintDistance = row.floatPtr("sprint_distance")
		load.Accelerations = row.intPtr("accelerations")
		load.Decelerations = row.intPtr("decelerations")
		load.MaxSpeed = row.floatPtr("max_speed")
		load.Duration = row.intPtr("duration")
		load.PlayerLoad = row.floatPtr("player_load")
		load.MetabolicPower = row.floatPtr("metabolic_power")

		_, err = handler.trainingRepo.Add(ctx, load)
		return err
	})
}

func (handler *Handler) HandleLifestyle(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.upload.lifestyle")
	defer span.End()

	handler.ingest(ctx, w, r, "lifestyle log", func(ctx context.Context, row csvRow, athleteID int) error {
		rawDate, ok := row.get("date")
		if !ok {
			return fmt.Errorf("no date specified")
		}
		date, err := parseDate(rawDate)
		if err != nil {
			return fmt.Errorf("invalid date [%s]", rawDate)
		}

		lifestyleLog := lifestyle.LifestyleLog{
			AthleteID: athleteID,
			Date:      date,
			Notes:     row.getOr("notes", ""),
		}
		lifestyleLog.SleepHours = row.floatPtr("sleep_hours")
		lifestyleLog.SleepQuality = row.intPtr("sleep_quality")
		lifestyleLog.NutritionScore = row.intPtr("nutrition_score")
		lifestyleLog.HydrationLiters = row.floatPtr("hydration_liters")
		lifestyleLog.StressLevel = row.intPtr("stress_level")
		lifestyleLog.SorenessLevel = row.intPtr("soreness_level")
		lifestyleLog.FatigueLevel = row.intPtr("fatigue_level")

		_, err = handler.lifestyleRepo.Add(ctx, lifestyleLog)
		return err
	})
}

func (handler *Handler) HandleTreatments(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.upload.treatments")
	defer span.End()

	handler.ingest(ctx, w, r, "treatment", func(ctx context.Context, row csvRow, athleteID int) error {
		rawDate, ok := row.get("date", "treatment_date")
		if !ok {
			return fmt.Errorf("no date specified")
		}
		date, err := parseDate(rawDate)
		if err != nil {
			return fmt.Errorf("invalid date [%s]", rawDate)
		}

		modality, ok := row.get("modality", "treatment_type")
		if !ok {
			return fmt.Errorf("no modality specified")
		}

		treatment := treatments.Treatment{
			AthleteID: athleteID,
			Date:      date,
			Modality:  modality,
			BodyPart:  row.getOr("body_part", ""),
			Severity:  row.getOr("severity", ""),
			Notes:     row.getOr("notes", ""),
		}
		treatment.Duration = row.intPtr("duration")

		_, err = handler.treatmentsRepo.Add(ctx, treatment)
		return err
	})
}

func (handler *Handler) HandleInjuries(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.upload.injuries")
	defer span.End()

	handler.ingest(ctx, w, r, "injury", func(ctx context.Context, row csvRow, athleteID int) error {
		rawDate, ok := row.get("injury_date", "date")
		if !ok {
			return fmt.Errorf("no injury_date specified")
		}
		injuryDate, err := parseDate(rawDate)
		if err != nil {
			return fmt.Errorf("invalid injury_date [%s]", rawDate)
		}

		injuryType, ok := row.get("injury_type")
		if !ok {
			return fmt.Errorf("no injury_type specified")
		}
		bodyPart, ok := row.get("body_part")
		if !ok {
			return fmt.Errorf("no body_part specified")
		}

		injury := injuries.Injury{
			AthleteID:   athleteID,
			InjuryDate:  injuryDate,
			InjuryType:  injuryType,
			BodyPart:    bodyPart,
			Severity:    row.getOr("severity", injuries.SeverityMinor),
			Description: row.getOr("description", ""),
		}
		injury.DaysMissed = row.intPtr("days_missed")
		if rawRecovery, ok := row.get("recovery_date"); ok {
			recoveryDate, err := parseDate(rawRecovery)
			if err != nil {
				return fmt.Errorf("invalid recovery_date [%s]", rawRecovery)
			}
			injury.RecoveryDate = &recoveryDate
		}

		_, err = handler.injuriesRepo.Add(ctx, injury)
		return err
	})
}

// ingest runs the shared per-row loop: resolve the athlete, hand the row to
// the record builder, tally imported and rejected rows.
func (handler *Handler) ingest(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	recordName string,
	addRow func(ctx context.Context, row csvRow, athleteID int) error,
) {
	rows, err := csvRowsFromRequest(r)
	if err != nil {
		log.Tracef("upload %ss, read csv: %s", recordName, err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	athleteIDOverride, err := athleteIDOverrideFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	uploadResp := UploadResponse{
		Errors: make([]string, 0),
	}
	rejected := 0

	rejectRow := func(rowNum int, format string, args ...any) {
		rejected++
		if len(uploadResp.Errors) < maxReportedErrors {
			uploadResp.Errors = append(
				uploadResp.Errors,
				fmt.Sprintf("Row %d: %s", rowNum, fmt.Sprintf(format, args...)),
			)
		}
	}

	for _, row := range rows {
		athleteID, err := handler.resolveAthleteID(ctx, row, athleteIDOverride)
		if err != nil {
			rejectRow(row.num, "%s", err)
			continue
		}

		if err := addRow(ctx, row, athleteID); err != nil {
			switch {
			case pkg.IsUniqueViolationError(err):
				rejectRow(row.num, "duplicate record")
			case pkg.IsForeignKeyViolationError(err):
				rejectRow(row.num, "athlete ID %d not found", athleteID)
			default:
				rejectRow(row.num, "%s", err)
			}
			continue
		}

		uploadResp.CreatedCount++
	}

	handler.metricsManager.CounterCSVRowsImported.Add(float64(uploadResp.CreatedCount))
	handler.metricsManager.CounterCSVRowsRejected.Add(float64(rejected))

	uploadResp.Message = fmt.Sprintf(
		"Successfully imported %d %s records", uploadResp.CreatedCount, recordName,
	)

	log.Debugf("upload %ss: %d imported, %d rejected", recordName, uploadResp.CreatedCount, rejected)

	uploadRespJson, err := json.Marshal(uploadResp)
	if err != nil {
		log.Errorf("upload %ss, marshal response: %s", recordName, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, uploadRespJson, http.StatusOK)
}

// resolveAthleteID picks the athlete for a row: the request-level override
// wins, then an athlete_id column, then an athlete_name lookup.
func (handler *Handler) resolveAthleteID(ctx context.Context, row csvRow, override int) (int, error) {
	if override > 0 {
		return override, nil
	}

	if rawID, ok := row.get("athlete_id"); ok {
		id, err := strconv.Atoi(rawID)
		if err != nil {
			return 0, fmt.Errorf("invalid athlete_id [%s]", rawID)
		}
		if _, err := handler.athletesRepo.Get(ctx, id); err != nil {
			return 0, fmt.Errorf("athlete ID %d not found", id)
		}
		return id, nil
	}

	if name, ok := row.get("athlete_name"); ok {
		athlete, err := handler.athletesRepo.GetByName(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("athlete [%s] not found", name)
		}
		return athlete.ID, nil
	}

	return 0, fmt.Errorf("no athlete_id specified")
}

func athleteIDOverrideFromRequest(r *http.Request) (int, error) {
	rawID := r.URL.Query().Get("athleteId")
	if rawID == "" {
		rawID = r.FormValue("athleteId")
	}
	if rawID == "" {
		return 0, nil
	}
	id, err := strconv.Atoi(rawID)
	if err != nil {
		return 0, fmt.Errorf("error, athleteId NaN")
	}
	return id, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.DateOnly, "2006-01-02 15:04:05", time.RFC3339} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date")
}
