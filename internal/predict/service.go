// Package predict hosts the resolution orchestrator: it sequences intent
// parsing, geocoding, horizon-based source dispatch, and the final blend into
// one prediction per request. Every external collaborator is an interface so
// the pipeline can be exercised with fakes.
package predict

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"raincheck/internal/intent"
	"raincheck/internal/types"
)

// IntentParser extracts structured intent from a free-text query. It must be
// lenient: failures yield an empty intent, never an error, so the pipeline can
// fall back to heuristics. The bool reports whether the parser responded.
type IntentParser interface {
	ExtractIntent(ctx context.Context, query string) (types.ParsedIntent, bool)
}

// Geocoder resolves a place name to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (types.Coordinate, error)
}

// ForecastSource fetches a single-day numerical forecast.
type ForecastSource interface {
	Name() string
	Fetch(ctx context.Context, coord types.Coordinate, date time.Time) (types.ForecastSample, error)
}

// HistoricalSource builds a same-calendar-day climatology across past years.
// Sources are interchangeable; the orchestrator tries them in order and takes
// the first that succeeds.
type HistoricalSource interface {
	Name() string
	Fetch(ctx context.Context, coord types.Coordinate, date time.Time) (types.ClimatologySample, error)
}

// Request is the immutable input to one pipeline pass. Query is free text;
// the remaining fields are explicit overrides that take precedence over
// anything parsed from it.
type Request struct {
	Query    string
	Lat      *float64
	Lon      *float64
	Date     string
	Activity string
}

// Options configures a Service.
type Options struct {
	// Strict makes missing location/date after model extraction a hard
	// failure instead of triggering the heuristic fallback. It only gates
	// the query path: requests carrying explicit coordinates and no query
	// never hit the check.
	Strict bool
	// HorizonDays is the forecast horizon, inclusive.
	HorizonDays int
	// Weights are the blending constants.
	Weights Weights
}

// Service is the resolution orchestrator.
type Service struct {
	parser     IntentParser
	geocoder   Geocoder
	forecast   ForecastSource
	historical []HistoricalSource
	opts       Options
	clock      types.Clock
	logger     *slog.Logger
}

// NewService wires the orchestrator. historical sources are consulted in the
// given order.
func NewService(
	parser IntentParser,
	geocoder Geocoder,
	forecast ForecastSource,
	historical []HistoricalSource,
	opts Options,
	clock types.Clock,
	logger *slog.Logger,
) *Service {
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 16
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}
	return &Service{
		parser:     parser,
		geocoder:   geocoder,
		forecast:   forecast,
		historical: historical,
		opts:       opts,
		clock:      clock,
		logger:     logger,
	}
}

// Predict runs the full pipeline for one request.
func (s *Service) Predict(ctx context.Context, req Request) (types.PredictionResult, error) {
	now := s.clock.Now().UTC()

	parsed, err := s.resolveIntent(ctx, req)
	if err != nil {
		return types.PredictionResult{}, err
	}

	if parsed.DateISO == "" {
		parsed.DateISO = intent.ToISODate(now.AddDate(0, 0, 7))
	}
	targetDate, err := time.Parse(types.ISODateLayout, parsed.DateISO)
	if err != nil {
		return types.PredictionResult{}, types.NewAppError(
			types.ErrCodeValidationInvalidDate,
			fmt.Sprintf("unusable target date %q", parsed.DateISO),
			err,
		)
	}

	coord, err := s.resolveCoordinate(ctx, req, parsed)
	if err != nil {
		return types.PredictionResult{}, err
	}

	daysAhead := int(math.Floor(targetDate.Sub(now).Hours() / 24))
	isFuture := targetDate.After(now)
	withinHorizon := daysAhead <= s.opts.HorizonDays

	var result types.PredictionResult
	if isFuture && withinHorizon {
		result = s.predictBlended(ctx, coord, targetDate, parsed)
	} else {
		result, err = s.predictClimatology(ctx, coord, targetDate, parsed)
		if err != nil {
			return types.PredictionResult{}, err
		}
	}

	s.logger.InfoContext(ctx, "prediction computed",
		slog.String("date", result.Date),
		slog.Int("days_ahead", daysAhead),
		slog.String("source", string(result.Source)),
		slog.Int("rain_risk", result.RainRiskPct),
	)
	return result, nil
}

// resolveIntent merges explicit request fields with model extraction and, in
// non-strict mode, the heuristic parser. Explicit fields always win; the
// model fills their gaps; the heuristic fills whatever remains.
func (s *Service) resolveIntent(ctx context.Context, req Request) (types.ParsedIntent, error) {
	parsed := types.ParsedIntent{
		DateISO:  intent.NormalizeDateISO(req.Date),
		Activity: req.Activity,
	}

	if req.Query == "" {
		return parsed, nil
	}

	modelIntent, _ := s.parser.ExtractIntent(ctx, req.Query)
	modelIntent.Location = intent.SanitizeLocation(modelIntent.Location)
	modelIntent.DateISO = intent.NormalizeDateISO(modelIntent.DateISO)
	parsed = parsed.Merge(modelIntent)

	if s.opts.Strict && !parsed.Complete() {
		return types.ParsedIntent{}, types.NewAppErrorWithDetails(
			types.ErrCodeExtractionIncomplete,
			"extraction incomplète: lieu ou date manquant",
			nil,
			map[string]any{
				"location": parsed.Location != "",
				"dateISO":  parsed.DateISO != "",
				"activity": parsed.Activity,
			},
		)
	}

	parsed = parsed.Merge(intent.ParseHeuristic(req.Query, s.clock.Now()))
	return parsed, nil
}

// resolveCoordinate returns explicit coordinates when supplied, otherwise
// walks an ordered chain of geocoding attempts: the resolved location, a
// capitalized-sequence candidate from the raw query, then the aggressively
// stripped query. Each failure is swallowed and the next attempt tried; the
// request fails only when the whole chain is exhausted.
func (s *Service) resolveCoordinate(ctx context.Context, req Request, parsed types.ParsedIntent) (types.Coordinate, error) {
	if req.Lat != nil && req.Lon != nil {
		return types.Coordinate{Lat: *req.Lat, Lon: *req.Lon}, nil
	}

	attempts := []string{
		parsed.Location,
		intent.ExtractCandidateLocation(req.Query),
		intent.StripQueryNoise(req.Query),
	}

	var failures *multierror.Error
	tried := make(map[string]struct{}, len(attempts))
	for _, place := range attempts {
		if place == "" {
			continue
		}
		if _, dup := tried[place]; dup {
			continue
		}
		tried[place] = struct{}{}

		coord, err := s.geocoder.Geocode(ctx, place)
		if err == nil {
			return coord, nil
		}
		failures = multierror.Append(failures, fmt.Errorf("geocode %q: %w", place, err))
		s.logger.DebugContext(ctx, "geocoding attempt failed",
			slog.String("place", place),
			slog.String("error", err.Error()),
		)
	}

	return types.Coordinate{}, types.NewAppError(
		types.ErrCodeLocationUnresolvable,
		"coordonnées manquantes et aucun lieu résolvable",
		failures.ErrorOrNil(),
	)
}

// predictBlended is the near-future path: forecast and climatology are
// fetched concurrently and each branch may fail independently without
// failing the request.
func (s *Service) predictBlended(ctx context.Context, coord types.Coordinate, date time.Time, parsed types.ParsedIntent) types.PredictionResult {
	var forecast *types.ForecastSample
	var historical *types.ClimatologySample

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sample, err := s.forecast.Fetch(gctx, coord, date)
		if err != nil {
			s.logger.WarnContext(gctx, "forecast branch unavailable",
				slog.String("source", s.forecast.Name()),
				slog.String("error", err.Error()),
			)
			return nil
		}
		forecast = &sample
		return nil
	})
	g.Go(func() error {
		sample, err := s.fetchClimatology(gctx, coord, date)
		if err != nil {
			s.logger.WarnContext(gctx, "climatology branch unavailable",
				slog.String("error", err.Error()),
			)
			return nil
		}
		historical = sample
		return nil
	})
	// Branch failures are absorbed above; Wait cannot return an error here.
	_ = g.Wait()

	return BlendResult(forecast, historical, parsed.Activity, types.SourceBlended, intent.ToISODate(date), s.opts.Weights)
}

// predictClimatology is the past-or-far-future path. There is no forecast to
// fall back on, so a climatology failure fails the request.
func (s *Service) predictClimatology(ctx context.Context, coord types.Coordinate, date time.Time, parsed types.ParsedIntent) (types.PredictionResult, error) {
	historical, err := s.fetchClimatology(ctx, coord, date)
	if err != nil {
		return types.PredictionResult{}, err
	}
	return BlendResult(nil, historical, parsed.Activity, types.SourceClimatology, intent.ToISODate(date), s.opts.Weights), nil
}

// fetchClimatology tries the historical sources in order and returns the
// first sample that carries data. A source answering with an all-null sample
// does not fail the request: the next source is still consulted, and when
// every source comes back empty the null sample is the degraded answer, not
// an error.
func (s *Service) fetchClimatology(ctx context.Context, coord types.Coordinate, date time.Time) (*types.ClimatologySample, error) {
	var failures *multierror.Error
	var emptySample *types.ClimatologySample
	for _, source := range s.historical {
		sample, err := source.Fetch(ctx, coord, date)
		if err != nil {
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", source.Name(), err))
			s.logger.WarnContext(ctx, "historical source failed",
				slog.String("source", source.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if sample.Empty() {
			s.logger.WarnContext(ctx, "historical source returned no data",
				slog.String("source", source.Name()),
			)
			if emptySample == nil {
				emptySample = &sample
			}
			continue
		}
		return &sample, nil
	}
	if emptySample != nil {
		return emptySample, nil
	}
	return nil, types.NewAppError(
		types.ErrCodeUpstreamClimatology,
		"no historical source could be reached",
		failures.ErrorOrNil(),
	)
}
