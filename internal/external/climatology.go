package external

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"raincheck/internal/types"
)

// rainDayThresholdMm is the daily precipitation above which a historical day
// counts as a rainy day in the climatology.
const rainDayThresholdMm = 1.0

// dailyObservation is one historical day's worth of measurements, as returned
// by a provider for a single (coordinate, date) pair. Nil fields mean the
// provider had no value for that variable.
type dailyObservation struct {
	PrecipMm *float64
	TempC    *float64
	WindMs   *float64
}

// yearFetcher retrieves the observation for the target day-of-year in one
// specific past year.
type yearFetcher func(ctx context.Context, coord types.Coordinate, day time.Time) (dailyObservation, error)

// aggregateYears builds a climatology for the target date by fetching the
// same calendar day across the previous lookback years concurrently and
// aggregating whatever came back. Individual year failures are logged and
// skipped; the climatology degrades gracefully as long as at least one year
// responds. When every year fails, the sample is empty and an error is
// returned so the caller can decide whether that is fatal for its branch.
func aggregateYears(
	ctx context.Context,
	coord types.Coordinate,
	target time.Time,
	lookback int,
	fetch yearFetcher,
	logger *slog.Logger,
	sourceName string,
) (types.ClimatologySample, error) {
	observations := make([]*dailyObservation, lookback)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < lookback; i++ {
		yearsBack := i + 1
		idx := i
		g.Go(func() error {
			day := target.AddDate(-yearsBack, 0, 0)
			obs, err := fetch(gctx, coord, day)
			if err != nil {
				logger.WarnContext(gctx, "climatology year unavailable",
					slog.String("source", sourceName),
					slog.String("day", day.Format(types.ISODateLayout)),
					slog.String("error", err.Error()),
				)
				return nil // partial failure is tolerated
			}
			mu.Lock()
			observations[idx] = &obs
			mu.Unlock()
			return nil
		})
	}
	// Worker errors are captured per-year above; Wait only observes context
	// cancellation.
	if err := g.Wait(); err != nil {
		return types.ClimatologySample{}, types.NewAppError(
			types.ErrCodeUpstreamClimatology,
			"climatology aggregation interrupted",
			err,
		)
	}

	var rainyDays, precipSamples int
	var tempSum, windSum float64
	var tempSamples, windSamples int
	for _, obs := range observations {
		if obs == nil {
			continue
		}
		if obs.PrecipMm != nil {
			precipSamples++
			if *obs.PrecipMm >= rainDayThresholdMm {
				rainyDays++
			}
		}
		if obs.TempC != nil {
			tempSum += *obs.TempC
			tempSamples++
		}
		if obs.WindMs != nil {
			windSum += *obs.WindMs
			windSamples++
		}
	}

	// Zero usable years is still an answer: the sample stays all-null and
	// the blend falls back to its neutral defaults downstream.
	if precipSamples == 0 && tempSamples == 0 && windSamples == 0 {
		logger.WarnContext(ctx, "no historical years could be retrieved",
			slog.String("source", sourceName),
			slog.Int("years_requested", lookback),
		)
		return types.ClimatologySample{}, nil
	}

	var sample types.ClimatologySample
	if precipSamples > 0 {
		prob := math.Round(100 * float64(rainyDays) / float64(precipSamples))
		sample.RainProbabilityPct = &prob
	}
	if tempSamples > 0 {
		mean := roundTo(tempSum/float64(tempSamples), 1)
		sample.MeanTempC = &mean
	}
	if windSamples > 0 {
		mean := roundTo(windSum/float64(windSamples), 1)
		sample.MeanWindMs = &mean
	}

	logger.DebugContext(ctx, "climatology aggregated",
		slog.String("source", sourceName),
		slog.Int("years_requested", lookback),
		slog.Int("precip_samples", precipSamples),
	)

	return sample, nil
}
