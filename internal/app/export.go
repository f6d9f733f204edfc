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

	"invest-calendar/internal/upstream/kis"
)

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	Code      string
	From      *time.Time
	To        *time.Time
	Period    string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// Export fetches a stock's price history and renders it as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.Code == "" {
		return errors.New("--code is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)
	if opts.Period == "" {
		opts.Period = "D"
	}

	to := time.Now()
	if opts.To != nil {
		to = *opts.To
	}
	from := to.AddDate(-1, 0, 0)
	if opts.From != nil {
		from = *opts.From
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	cl := a.newClients()
	candles, err := cl.kis.StockHistory(ctx, opts.Code, from, to, opts.Period)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		a.Logger.Info().Str("code", opts.Code).Msg("no candles found for export window")
		return nil
	}

	downsampled := downsampleCandles(candles, opts.MaxPoints)
	a.Logger.Info().
		Str("code", opts.Code).
		Int("total", len(candles)).
		Int("exported", len(downsampled)).
		Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writeCandlesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}
	if opts.PNGPath != "" {
		if err := writeCandlesPNG(opts.PNGPath, opts.Code, downsampled); err != nil {
			return err
		}
	}
	return nil
}

func downsampleCandles(candles []kis.Candle, max int) []kis.Candle {
	if max <= 0 || len(candles) <= max {
		return candles
	}

	result := make([]kis.Candle, 0, max)
	step := float64(len(candles)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(candles) {
			idx = len(candles) - 1
		}
		result = append(result, candles[idx])
	}
	return result
}

func writeCandlesCSV(path string, candles []kis.Candle) error {
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

	header := []string{"date", "open", "high", "low", "close", "volume"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, candle := range candles {
		record := []string{
			candle.Date,
			candle.Open.String(),
			candle.High.String(),
			candle.Low.String(),
			candle.Close.String(),
			strconv.FormatInt(candle.Volume, 10),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	return writer.Error()
}

func writeCandlesPNG(path, code string, candles []kis.Candle) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, 0, len(candles))
	closes := make([]float64, 0, len(candles))
	for _, candle := range candles {
		day, err := time.Parse("2006-01-02", candle.Date)
		if err != nil {
			continue
		}
		x = append(x, day)
		closes = append(closes, candle.Close.InexactFloat64())
	}
	if len(x) == 0 {
		return errors.New("no parseable candles to chart")
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Close (KRW)",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    code,
				XValues: x,
				YValues: closes,
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
