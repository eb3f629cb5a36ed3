// Package seed fills the store with synthetic daily production history for
// the admin dashboard.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devghori1264/prodmon/internal/models"
	"github.com/devghori1264/prodmon/internal/shiftclock"
	"github.com/devghori1264/prodmon/internal/simulator"
	"github.com/devghori1264/prodmon/internal/storage"
)

const (
	KeyPrefix  = "production_daily/"
	dateLayout = "2006-01-02"
)

type line struct {
	code, name, product string
}

var lines = []line{
	{"M01", "Cutting Machine", "Gear Housing"},
	{"M02", "Press Machine", "Bearing Plate"},
	{"M03", "Lathe", "Axle Shaft"},
	{"M04", "Milling Machine", "Drive Pulley"},
	{"M05", "Welder", "Frame Support"},
}

var shifts = []string{shiftclock.Shift1, shiftclock.Shift2, shiftclock.Shift3}

// Classify maps an achievement ratio to a line status and its problem text.
func Classify(target, actual int) (models.LineStatus, string) {
	ratio := 0.0
	if target > 0 {
		ratio = float64(actual) / float64(target)
	}
	switch {
	case ratio >= 0.9:
		return models.LineNormal, "None"
	case ratio >= 0.7:
		return models.LineSlow, "Loose motor belt"
	default:
		return models.LineFault, "Speed sensor error"
	}
}

// Key is the store key of a day's records.
func Key(day time.Time) string {
	return KeyPrefix + day.Format(dateLayout)
}

// Day generates the records of one day: every shift for every line.
func Day(day time.Time, rnd simulator.Rand) []models.ProductionRecord {
	date := day.Format(dateLayout)
	out := make([]models.ProductionRecord, 0, len(shifts)*len(lines))
	for _, shift := range shifts {
		for _, l := range lines {
			target := 450 + rnd.IntN(101)
			actual := 300 + rnd.IntN(251)
			status, problem := Classify(target, actual)
			out = append(out, models.ProductionRecord{
				Date:        date,
				Shift:       shift,
				MachineCode: l.code,
				MachineName: l.name,
				Product:     l.product,
				Target:      target,
				Actual:      actual,
				Status:      status,
				Problem:     problem,
			})
		}
	}
	return out
}

// Run writes days of history ending at today, overwriting existing days.
func Run(ctx context.Context, st storage.Store, today time.Time, days int, rnd simulator.Rand, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	for d := 0; d < days; d++ {
		day := today.AddDate(0, 0, -d)
		if err := storage.PutJSON(ctx, st, Key(day), Day(day, rnd)); err != nil {
			return fmt.Errorf("seed %s: %w", day.Format(dateLayout), err)
		}
	}
	log.Info("production history seeded", zap.Int("days", days))
	return nil
}

// Summary totals a day of production records.
type Summary struct {
	Date     string                    `json:"date"`
	Target   int                       `json:"target"`
	Actual   int                       `json:"actual"`
	ByStatus map[models.LineStatus]int `json:"byStatus"`
	Records  int                       `json:"records"`
}

// Load reads a day's records; a missing day is empty.
func Load(ctx context.Context, st storage.Store, day time.Time) ([]models.ProductionRecord, error) {
	var recs []models.ProductionRecord
	if err := storage.GetJSON(ctx, st, Key(day), &recs); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return recs, nil
}

// Summarize totals recs for date.
func Summarize(date string, recs []models.ProductionRecord) Summary {
	s := Summary{Date: date, ByStatus: map[models.LineStatus]int{}, Records: len(recs)}
	for _, r := range recs {
		s.Target += r.Target
		s.Actual += r.Actual
		s.ByStatus[r.Status]++
	}
	return s
}
