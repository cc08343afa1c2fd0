package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/station-risk-forecast/internal/calendar"
	"github.com/couchcryptid/station-risk-forecast/internal/domain"
	"github.com/couchcryptid/station-risk-forecast/internal/forecast"
	"github.com/couchcryptid/station-risk-forecast/internal/series"
)

// forecast runs the modeling stages for one resolved station.
func (p *Pipeline) forecast(ctx context.Context, snap *snapshot, st domain.Station, radius int) (domain.ForecastResult, error) {
	runID := uuid.NewString()
	log := p.logger.With("station_key", st.Key, "radius_m", radius, "run_id", runID)

	start := time.Now()
	frame, matched, err := series.Build(snap.incidents, snap.ridership[st.Key], st, float64(radius))
	if err != nil {
		return domain.ForecastResult{}, err
	}
	p.observeStage("build", time.Since(start))
	log.Debug("daily frame built", "rows", frame.Len(), "incidents", len(matched))

	if err := ctx.Err(); err != nil {
		return domain.ForecastResult{}, err
	}
	trained, rep, err := p.trainer.Train(ctx, frame)
	if err != nil {
		return domain.ForecastResult{}, err
	}
	p.observeStage("trend", rep.TrendDuration)
	p.observeStage("regressor", rep.RegressorDuration)
	p.metrics.BoostingRounds.Observe(float64(trained.Regressor.BestIteration() + 1))
	for _, reason := range rep.Degraded {
		p.metrics.DegradedRuns.WithLabelValues(reason).Inc()
		log.Warn("training degraded", "reason", reason, "rows", frame.Len())
	}
	log.Debug("model trained",
		"train_rows", rep.TrainRows,
		"validation_rows", rep.ValidationRows,
		"test_rows", rep.TestRows,
		"oversampled_rows", rep.OversampledRows,
		"imputed_validation", rep.Imputed["validation"],
		"imputed_test", rep.Imputed["test"],
	)

	if err := ctx.Err(); err != nil {
		return domain.ForecastResult{}, err
	}
	start = time.Now()
	base := forecast.BaseWeeklyRate(frame, series.MeanWeeklyIncidents(frame))
	fr, err := p.forecaster.Forecast(frame, trained, base)
	if err != nil {
		return domain.ForecastResult{}, err
	}
	profile := calendar.Build(matched)
	weeks := calendar.Enrich(fr.Weeks, profile)
	p.observeStage("forecast", time.Since(start))
	log.Debug("future features imputed", "cells", fr.Imputed)

	result := domain.ForecastResult{
		RunID:                  runID,
		GeneratedAt:            domain.Now(),
		StationKey:             st.Key,
		StationName:            st.Name,
		Line:                   st.Line,
		RadiusMeters:           radius,
		FeedVersion:            snap.version,
		BaseWeeklyRate:         base,
		Degraded:               rep.Degraded,
		Evaluation:             rep.Evaluation,
		Weeks:                  weeks,
		Daily:                  fr.Daily,
		WeekdayDistribution:    profile.Weekdays,
		HourDistribution:       profile.Hours,
		HourWindowDistribution: profile.HourWindows,
		CategoryDistribution:   profile.Categories,
		History:                frame.Rows,
	}
	log.Info("forecast complete", "weeks", len(weeks), "base_weekly_rate", base, "incidents", len(matched))
	return result, nil
}

func (p *Pipeline) observeStage(stage string, d time.Duration) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
