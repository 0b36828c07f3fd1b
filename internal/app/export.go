package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"palmbudget/internal/storage"
)

// Export renders the sweep audit history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	// Sweeps happen at most once per user per month; a year back is a
	// sensible default window.
	from := to.AddDate(-1, 0, 0)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	events, err := store.ListSweepsBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		a.Logger.Info().Msg("no sweep records found for export window")
		return nil
	}

	downsampled := downsampleEvents(events, opts.MaxPoints)
	a.Logger.Info().Int("total", len(events)).Int("exported", len(downsampled)).Msg("exporting sweep records")

	if opts.CSVPath != "" {
		if err := writeEventsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeEventsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleEvents(events []storage.SweepEvent, max int) []storage.SweepEvent {
	if max <= 0 || len(events) <= max {
		return events
	}

	result := make([]storage.SweepEvent, 0, max)
	step := float64(len(events)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(events) {
			idx = len(events) - 1
		}
		result = append(result, events[idx])
	}
	return result
}

func writeEventsCSV(path string, events []storage.SweepEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"swept_at", "user", "source", "destination", "amount", "yield_bps"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, event := range events {
		record := []string{
			event.SweptAt.Format(time.RFC3339),
			event.User,
			event.Source,
			event.Destination,
			event.Amount.String(),
			strconv.FormatInt(event.YieldBps, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeEventsPNG(path string, events []storage.SweepEvent) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(events))
	amounts := make([]float64, len(events))
	yields := make([]float64, len(events))

	for i, event := range events {
		x[i] = event.SweptAt
		amounts[i] = event.Amount.InexactFloat64()
		yields[i] = float64(event.YieldBps)
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Swept amount",
			ValueFormatter: amountFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Destination yield (bps)",
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Amount",
				XValues: x,
				YValues: amounts,
			},
			chart.TimeSeries{
				Name:    "Yield bps",
				XValues: x,
				YValues: yields,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
