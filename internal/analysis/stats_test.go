// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/evolution-gaming/framestrip/internal/metric"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func Test_Stages(t *testing.T) {
	got := Stages(getSamples(3))
	if diff := cmp.Diff([]string{"audio", "image"}, got); diff != "" {
		t.Errorf("Stages mismatch (-want +got):\n%s", diff)
	}
}

func Test_Steps(t *testing.T) {
	samples := []metric.Sample{
		{Stage: "audio", Ratio: 1},
		{Stage: "image", Ratio: 0.25},
		{Stage: "image", Ratio: 0.5},
		{Stage: "image", Ratio: 0.5},
		{Stage: "image", Ratio: 1},
	}
	want := []float64{0.25, 0.25, 0, 0.5}
	if diff := cmp.Diff(want, Steps(samples, "image")); diff != "" {
		t.Errorf("Steps mismatch (-want +got):\n%s", diff)
	}
}

func Test_SummarizeStage(t *testing.T) {
	samples := []metric.Sample{
		{Stage: "audio", Offset: 0, Ratio: 1},
		{Stage: "image", Offset: 1 * time.Second, Ratio: 0.25},
		{Stage: "image", Offset: 2 * time.Second, Ratio: 0.5},
		{Stage: "image", Offset: 3 * time.Second, Ratio: 0.75},
		{Stage: "image", Offset: 4 * time.Second, Ratio: 1},
	}
	approx := cmpopts.EquateApprox(0, 1e-12)

	tests := map[string]struct {
		stage string
		want  StageSummary
	}{
		"Even image steps": {
			stage: "image",
			want: StageSummary{
				Stage:    "image",
				Samples:  4,
				Span:     3 * time.Second,
				StepMean: 0.25,
				StepMax:  0.25,
			},
		},
		"Single audio sample": {
			stage: "audio",
			want:  StageSummary{Stage: "audio", Samples: 1, StepMean: 1, StepMax: 1},
		},
		"Absent stage": {
			stage: "video",
			want:  StageSummary{Stage: "video"},
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := SummarizeStage(samples, tc.stage)
			if diff := cmp.Diff(tc.want, got, approx); diff != "" {
				t.Errorf("StageSummary mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("Uneven steps have positive deviation", func(t *testing.T) {
		got := SummarizeImageStage(getSamples(10))
		if !(got.StepStDev > 0) || math.Abs(got.StepStDev*got.StepStDev-got.StepVariance) > 1e-12 {
			t.Errorf("Unexpected deviation: %+v", got)
		}
		if got.StepMax > 1 || got.StepMean <= 0 {
			t.Errorf("Unexpected steps: %+v", got)
		}
	})
}
