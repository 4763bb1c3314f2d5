// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package analysis

import (
	"time"

	"github.com/evolution-gaming/framestrip/internal/metric"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const imageStage = "image"

// StageSummary contains progress statistics of a single stage.
type StageSummary struct {
	Stage   string
	Samples int
	// Offset of the last sample relative to the first one
	Span time.Duration
	// Statistics of ratio increments between consecutive samples
	StepMean     float64
	StepMax      float64
	StepStDev    float64
	StepVariance float64
}

// Stages returns distinct stage names in order of first appearance.
func Stages(samples []metric.Sample) []string {
	var stages []string
	seen := make(map[string]bool)
	for _, s := range samples {
		if !seen[s.Stage] {
			seen[s.Stage] = true
			stages = append(stages, s.Stage)
		}
	}
	return stages
}

// Steps returns ratio increments of stage samples, the first one relative to 0.
func Steps(samples []metric.Sample, stage string) []float64 {
	var steps []float64
	var last float64
	for _, s := range samples {
		if s.Stage != stage {
			continue
		}
		steps = append(steps, s.Ratio-last)
		last = s.Ratio
	}
	return steps
}

// SummarizeStage calculates progress statistics of stage.
func SummarizeStage(samples []metric.Sample, stage string) StageSummary {
	sum := StageSummary{Stage: stage}
	var first, last time.Duration
	for _, s := range samples {
		if s.Stage != stage {
			continue
		}
		if sum.Samples == 0 {
			first = s.Offset
		}
		last = s.Offset
		sum.Samples++
	}
	if sum.Samples == 0 {
		return sum
	}
	sum.Span = last - first

	steps := Steps(samples, stage)
	sum.StepMax = floats.Max(steps)
	if len(steps) > 1 {
		sum.StepMean, sum.StepStDev = stat.MeanStdDev(steps, nil)
		sum.StepVariance = stat.Variance(steps, nil)
	} else {
		sum.StepMean = steps[0]
	}
	return sum
}

// SummarizeImageStage is SummarizeStage of image stage.
func SummarizeImageStage(samples []metric.Sample) StageSummary {
	return SummarizeStage(samples, imageStage)
}
