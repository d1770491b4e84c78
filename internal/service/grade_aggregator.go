package service

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/practicum-api/internal/models"
	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

// Band lower bounds, inclusive.
const (
	excellentFloor    = 85.0
	goodFloor         = 70.0
	satisfactoryFloor = 60.0
)

// AggregatorConfig tunes rounding and cohort fan-out.
type AggregatorConfig struct {
	// Precision is the number of decimals kept on final grades; 0 rounds to whole numbers.
	Precision int
	// Workers bounds the goroutines used by SummarizeCohort.
	Workers int
}

// GradeAggregator owns the one weighted-grade formula used everywhere.
type GradeAggregator struct {
	factor  float64
	workers int
}

// NewGradeAggregator constructs a GradeAggregator.
func NewGradeAggregator(cfg AggregatorConfig) *GradeAggregator {
	if cfg.Precision < 0 {
		cfg.Precision = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &GradeAggregator{factor: math.Pow10(cfg.Precision), workers: cfg.Workers}
}

// ComputeFinalGrade returns Σ(score/max·100·weight) / Σweight rounded half-up.
// The divisor is the weight actually present on the record.
func (a *GradeAggregator) ComputeFinalGrade(components []models.GradeComponent) (float64, error) {
	if len(components) == 0 {
		return 0, nil
	}
	var weighted, totalWeight float64
	for _, c := range components {
		if err := validateComponent(c); err != nil {
			return 0, err
		}
		weighted += c.Score / c.MaxScore * 100 * c.Weight
		totalWeight += c.Weight
	}
	if totalWeight == 0 {
		return 0, nil
	}
	return a.round(weighted / totalWeight), nil
}

// ComputeAttendancePercentage counts present and late sessions over all sessions.
func (a *GradeAggregator) ComputeAttendancePercentage(records []models.AttendanceRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	present := 0
	for _, r := range records {
		if r.Status.CountsAsPresent() {
			present++
		}
	}
	return float64(present) / float64(len(records)) * 100
}

// ComputeRequirementCompletion returns the share of completed requirement items.
func (a *GradeAggregator) ComputeRequirementCompletion(items []models.RequirementItem) float64 {
	if len(items) == 0 {
		return 0
	}
	done := 0
	for _, item := range items {
		if item.Completed {
			done++
		}
	}
	return float64(done) / float64(len(items)) * 100
}

// Classify maps a final grade onto its band.
func (a *GradeAggregator) Classify(finalGrade float64) models.GradeBand {
	switch {
	case finalGrade >= excellentFloor:
		return models.BandExcellent
	case finalGrade >= goodFloor:
		return models.BandGood
	case finalGrade >= satisfactoryFloor:
		return models.BandSatisfactory
	default:
		return models.BandNeedsImprovement
	}
}

// Summarize computes every figure for one record from its raw data.
func (a *GradeAggregator) Summarize(record models.GradeRecord) (models.GradeSummary, error) {
	final, err := a.ComputeFinalGrade(record.Components)
	if err != nil {
		return models.GradeSummary{}, err
	}
	return models.GradeSummary{
		RecordID:              record.ID,
		StudentID:             record.StudentID,
		StudentName:           record.StudentName,
		Section:               record.Section,
		FinalGrade:            final,
		Band:                  a.Classify(final),
		AttendancePercentage:  a.ComputeAttendancePercentage(record.Attendance),
		RequirementCompletion: a.ComputeRequirementCompletion(record.Requirements),
	}, nil
}

// SummarizeCohort summarizes records concurrently. Output order matches input order.
func (a *GradeAggregator) SummarizeCohort(ctx context.Context, records []models.GradeRecord) ([]models.GradeSummary, error) {
	summaries := make([]models.GradeSummary, len(records))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i := range records {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			summary, err := a.Summarize(records[i])
			if err != nil {
				return fmt.Errorf("record %s: %w", records[i].ID, err)
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// snapScale absorbs float drift such as 14.5 arriving as 14.499999999999998
// so exact halves still round up.
const snapScale = 1e9

func (a *GradeAggregator) round(v float64) float64 {
	scaled := math.Round(v*a.factor*snapScale) / snapScale
	return math.Floor(scaled+0.5) / a.factor
}

func validateComponent(c models.GradeComponent) error {
	if !isFinite(c.Score) || !isFinite(c.MaxScore) || !isFinite(c.Weight) {
		return appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("component %q has a non-finite value", c.Name))
	}
	if c.MaxScore <= 0 {
		return appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("component %q: maxScore must be positive", c.Name))
	}
	if c.Weight < 0 {
		return appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("component %q: weight must not be negative", c.Name))
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
