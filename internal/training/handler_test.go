package training

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTrainingRepo struct {
	loads  map[int]TrainingLoad
	nextID int
}

func newFakeTrainingRepo() *fakeTrainingRepo {
	return &fakeTrainingRepo{
		loads:  map[int]TrainingLoad{},
		nextID: 1,
	}
}

func (f *fakeTrainingRepo) Add(_ context.Context, load TrainingLoad) (*TrainingLoad, error) {
	load.ID = f.nextID
	f.nextID++
	load.CreatedAt = time.Now()
	f.loads[load.ID] = load
	return &load, nil
}

func (f *fakeTrainingRepo) Get(_ context.Context, id int) (*TrainingLoad, error) {
	l, ok := f.loads[id]
	if !ok {
		return nil, ErrTrainingLoadNotFound
	}
	return &l, nil
}

func (f *fakeTrainingRepo) Update(_ context.Context, load *TrainingLoad) error {
	if _, ok := f.loads[load.ID]; !ok {
		return ErrTrainingLoadNotFound
	}
	f.loads[load.ID] = *load
	return nil
}

func (f *fakeTrainingRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.loads[id]; !ok {
		return ErrTrainingLoadNotFound
	}
	delete(f.loads, id)
	return nil
}

func (f *fakeTrainingRepo) ListForAthlete(_ context.Context, params ListParams) ([]TrainingLoad, error) {
	list := make([]TrainingLoad, 0)
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
		list = append(list, l)
	}
	return list, nil
}

func setupTrainingRouterForTests(t *testing.T, repo *fakeTrainingRepo) *mux.Router {
	t.Helper()
	r := mux.NewRouter()
	NewHandler(repo).SetupRoutes(r.PathPrefix("/training-loads").Subrouter())
	return r
}

func TestTrainingHandler_Add(t *testing.T) {
	repo := newFakeTrainingRepo()
	r := setupTrainingRouterForTests(t, repo)

	body := strings.NewReader(`{
		"athleteId": 3,
		"date": "2026-08-20T00:00:00Z",
		"trainingLoad": 540,
		"duration": 90,
		"sessionType": "practice",
		"totalDistance": 8100.5
	}`)
	req := httptest.NewRequest("POST", "/training-loads", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var added TrainingLoad
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Equal(t, 1, added.ID)
	assert.Equal(t, 3, added.AthleteID)
	assert.InDelta(t, 540, added.TrainingLoad, 0.001)
	require.NotNil(t, added.TotalDistance)
	assert.InDelta(t, 8100.5, *added.TotalDistance, 0.001)
}

func TestTrainingHandler_Add_MissingAthlete(t *testing.T) {
	r := setupTrainingRouterForTests(t, newFakeTrainingRepo())

	body := strings.NewReader(`{"trainingLoad": 300}`)
	req := httptest.NewRequest("POST", "/training-loads", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrainingHandler_ListForAthlete_DateRange(t *testing.T) {
	repo := newFakeTrainingRepo()
	day := func(d string) time.Time {
		parsed, err := time.Parse(time.DateOnly, d)
		require.NoError(t, err)
		return parsed
	}
	for _, l := range []TrainingLoad{
		{AthleteID: 7, Date: day("2026-08-01"), TrainingLoad: 400},
		{AthleteID: 7, Date: day("2026-08-10"), TrainingLoad: 500},
		{AthleteID: 7, Date: day("2026-08-20"), TrainingLoad: 600},
		{AthleteID: 8, Date: day("2026-08-10"), TrainingLoad: 999},
	} {
		_, err := repo.Add(context.Background(), l)
		require.NoError(t, err)
	}

	r := setupTrainingRouterForTests(t, repo)

	req := httptest.NewRequest("GET", "/training-loads/athlete/7?from=2026-08-05&to=2026-08-15", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var loads []TrainingLoad
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loads))
	require.Len(t, loads, 1)
	assert.InDelta(t, 500, loads[0].TrainingLoad, 0.001)
}

func TestTrainingHandler_DeleteNotFound(t *testing.T) {
	r := setupTrainingRouterForTests(t, newFakeTrainingRepo())

	req := httptest.NewRequest("DELETE", "/training-loads/42", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
