// Datagen produces CSV seed files with realistic, scenario-driven athlete
// data: an optimally loaded athlete, a monotonous grinder, a load spiker,
// one coming back from injury and one undertrained. The files match the
// column layout the /upload endpoints expect.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	log "github.com/sirupsen/logrus"
)

const (
	scenarioOptimal      = "optimal"
	scenarioMonotony     = "monotony"
	scenarioLoadSpike    = "load-spike"
	scenarioRecentInjury = "recent-injury"
	scenarioUndertrained = "undertrained"
)

var scenarios = []string{
	scenarioOptimal,
	scenarioMonotony,
	scenarioLoadSpike,
	scenarioRecentInjury,
	scenarioUndertrained,
}

type athleteSeed struct {
	name     string
	age      int
	position string
	team     string
	email    string
	scenario string
}

func main() {
	outDir := flag.String("out", "./seed-data", "output directory for the CSV files")
	athleteCount := flag.Int("athletes", 10, "number of athletes to generate")
	days := flag.Int("days", 56, "number of days of history to generate")
	seed := flag.Int64("seed", 0, "random seed (0 for time-based)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))
	gofakeit.Seed(*seed)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %s", err)
	}

	roster := generateRoster(*athleteCount)
	endDate := time.Now().UTC().Truncate(24 * time.Hour)

	writeCSV(*outDir, "athletes.csv",
		[]string{"name", "age", "position", "team", "email"},
		func(w *csv.Writer) {
			for _, a := range roster {
				mustWrite(w, []string{a.name, strconv.Itoa(a.age), a.position, a.team, a.email})
			}
		})

	writeCSV(*outDir, "training_loads.csv",
		[]string{"date", "athlete_name", "training_load", "total_distance", "high_speed_distance", "duration", "session_type"},
		func(w *csv.Writer) {
			for _, a := range roster {
				writeTrainingLoads(w, rng, a, endDate, *days)
			}
		})

	writeCSV(*outDir, "lifestyle.csv",
		[]string{"date", "athlete_name", "sleep_hours", "sleep_quality", "nutrition_score", "stress_level", "soreness_level", "fatigue_level"},
		func(w *csv.Writer) {
			for _, a := range roster {
				writeLifestyleLogs(w, rng, a, endDate, *days)
			}
		})

	writeCSV(*outDir, "treatments.csv",
		[]string{"date", "athlete_name", "modality", "duration", "body_part", "severity"},
		func(w *csv.Writer) {
			for _, a := range roster {
				writeTreatments(w, rng, a, endDate, *days)
			}
		})

	writeCSV(*outDir, "injuries.csv",
		[]string{"injury_date", "athlete_name", "injury_type", "body_part", "severity", "recovery_date", "days_missed"},
		func(w *csv.Writer) {
			for _, a := range roster {
				writeInjuries(w, rng, a, endDate)
			}
		})

	log.Infof("seed data for %d athletes (%d days) written to %s [seed %d]", len(roster), *days, *outDir, *seed)
}

func generateRoster(count int) []athleteSeed {
	positions := []string{"Forward", "Midfielder", "Defender", "Goalkeeper"}
	teams := []string{"First Team", "Reserves"}

	roster := make([]athleteSeed, 0, count)
	for i := 0; i < count; i++ {
		name := gofakeit.Name()
		roster = append(roster, athleteSeed{
			name:     name,
			age:      gofakeit.Number(17, 36),
			position: positions[i%len(positions)],
			team:     teams[i%len(teams)],
			email:    gofakeit.Email(),
			scenario: scenarios[i%len(scenarios)],
		})
	}
	return roster
}

// dailyLoad picks the training load for one day of the athlete's scenario.
// Day indexes run 0..days-1, oldest first.
func dailyLoad(rng *rand.Rand, scenario string, day, days int) (float64, bool) {
	switch scenario {
	case scenarioOptimal:
		// gradual progression with healthy daily variation, one rest
		// day per week
		if day%7 == 6 {
			return 0, false
		}
		week := day / 7
		progression := 1 + float64(week)*0.05
		variation := 0.85 + rng.Float64()*0.3
		return 300 * progression * variation, true
	case scenarioMonotony:
		// nearly identical load every single day
		return 350 + rng.Float64()*20 - 10, true
	case scenarioLoadSpike:
		// quiet chronic phase, then a massive final week
		if day >= days-7 {
			return 550 + rng.Float64()*100 - 50, true
		}
		return 250 + rng.Float64()*60 - 30, true
	case scenarioRecentInjury:
		// three weeks off, then a careful ramp back up
		offUntil := days - 21
		if day < offUntil {
			return 0, false
		}
		ramp := float64(day-offUntil) / 21
		return 150 + 200*ramp + rng.Float64()*30, true
	case scenarioUndertrained:
		// sporadic low loads, most days skipped
		if rng.Float64() > 0.3 {
			return 0, false
		}
		return 120 + rng.Float64()*80, true
	default:
		return 0, false
	}
}

func writeTrainingLoads(w *csv.Writer, rng *rand.Rand, a athleteSeed, endDate time.Time, days int) {
	for day := 0; day < days; day++ {
		load, trained := dailyLoad(rng, a.scenario, day, days)
		if !trained {
			continue
		}

		date := endDate.AddDate(0, 0, day-days+1)
		sessionType := "training"
		if day%7 == 5 {
			sessionType = "match"
		}
		distance := load * (22 + rng.Float64()*8)
		highSpeed := distance * (0.04 + rng.Float64()*0.04)
		duration := 45 + rng.Intn(50)

		mustWrite(w, []string{
			date.Format(time.DateOnly),
			a.name,
			fmt.Sprintf("%.1f", load),
			fmt.Sprintf("%.0f", distance),
			fmt.Sprintf("%.0f", highSpeed),
			strconv.Itoa(duration),
			sessionType,
		})
	}
}

func writeLifestyleLogs(w *csv.Writer, rng *rand.Rand, a athleteSeed, endDate time.Time, days int) {
	for day := 0; day < days; day++ {
		date := endDate.AddDate(0, 0, day-days+1)

		sleep := 7 + rng.Float64()*1.5
		stress := 2 + rng.Intn(4)
		if a.scenario == scenarioLoadSpike || a.scenario == scenarioRecentInjury {
			// troubled athletes sleep worse and stress more
			sleep = 5 + rng.Float64()*1.5
			stress = 6 + rng.Intn(4)
		}

		mustWrite(w, []string{
			date.Format(time.DateOnly),
			a.name,
			fmt.Sprintf("%.1f", sleep),
			strconv.Itoa(5 + rng.Intn(5)),
			strconv.Itoa(5 + rng.Intn(5)),
			strconv.Itoa(stress),
			strconv.Itoa(1 + rng.Intn(6)),
			strconv.Itoa(1 + rng.Intn(6)),
		})
	}
}

func writeTreatments(w *csv.Writer, rng *rand.Rand, a athleteSeed, endDate time.Time, days int) {
	modalities := []string{"ice bath", "massage", "physiotherapy", "compression", "stretching"}
	bodyParts := []string{"hamstring", "calf", "quad", "back", "shoulder", "ankle"}
	severities := []string{"minor", "minor", "moderate", "severe"}

	// two or three recovery sessions per week, injured athletes get more
	perWeek := 2 + rng.Intn(2)
	if a.scenario == scenarioRecentInjury {
		perWeek = 5
	}

	for day := 0; day < days; day++ {
		if rng.Intn(7) >= perWeek {
			continue
		}
		date := endDate.AddDate(0, 0, day-days+1)
		mustWrite(w, []string{
			date.Format(time.DateOnly),
			a.name,
			modalities[rng.Intn(len(modalities))],
			strconv.Itoa(10 + rng.Intn(40)),
			bodyParts[rng.Intn(len(bodyParts))],
			severities[rng.Intn(len(severities))],
		})
	}
}

func writeInjuries(w *csv.Writer, rng *rand.Rand, a athleteSeed, endDate time.Time) {
	injuryTypes := []string{"hamstring strain", "ankle sprain", "groin strain", "knee contusion", "calf tear"}
	bodyParts := []string{"hamstring", "ankle", "groin", "knee", "calf"}

	switch a.scenario {
	case scenarioRecentInjury:
		typeIdx := rng.Intn(len(injuryTypes))
		injuryDate := endDate.AddDate(0, 0, -42)
		recoveryDate := injuryDate.AddDate(0, 0, 21)
		mustWrite(w, []string{
			injuryDate.Format(time.DateOnly),
			a.name,
			injuryTypes[typeIdx],
			bodyParts[typeIdx],
			"moderate",
			recoveryDate.Format(time.DateOnly),
			"21",
		})
	case scenarioLoadSpike:
		// an older, healed injury in the file, still inside the history
		// window
		typeIdx := rng.Intn(len(injuryTypes))
		injuryDate := endDate.AddDate(0, 0, -(120 + rng.Intn(50)))
		mustWrite(w, []string{
			injuryDate.Format(time.DateOnly),
			a.name,
			injuryTypes[typeIdx],
			bodyParts[typeIdx],
			"minor",
			injuryDate.AddDate(0, 0, 7).Format(time.DateOnly),
			"7",
		})
	}
}

func writeCSV(dir, name string, header []string, writeRows func(w *csv.Writer)) {
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		log.Fatalf("create %s: %s", name, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Warnf("close %s: %s", name, err)
		}
	}()

	w := csv.NewWriter(file)
	mustWrite(w, header)
	writeRows(w)
	w.Flush()

	if err := w.Error(); err != nil {
		log.Fatalf("write %s: %s", name, err)
	}
	log.Debugf("written: %s", name)
}

func mustWrite(w *csv.Writer, record []string) {
	if err := w.Write(record); err != nil {
		log.Fatalf("write csv record: %s", err)
	}
}
