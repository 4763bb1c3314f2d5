// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Tests for plotting related functionality.

package analysis

import (
	"errors"
	"os"
	"path"
	"testing"
	"time"

	"github.com/evolution-gaming/framestrip/internal/metric"
	"github.com/google/go-cmp/cmp"
)

// getSamples fixture provides progress timeline of a transcode with audio stage
// followed by image stage of n progress markers.
func getSamples(n int) []metric.Sample {
	samples := []metric.Sample{
		{Stage: "audio", Offset: 100 * time.Millisecond, Ratio: 0.5},
		{Stage: "audio", Offset: 200 * time.Millisecond, Ratio: 1},
	}
	for i := 1; i <= n; i++ {
		// Uneven steps
		ratio := float64(i*i) / float64(n*n+1)
		samples = append(samples, metric.Sample{
			Stage:  "image",
			Offset: 200*time.Millisecond + time.Duration(i)*50*time.Millisecond,
			Ratio:  ratio,
		})
	}
	return append(samples, metric.Sample{
		Stage:  "image",
		Offset: 200*time.Millisecond + time.Duration(n+1)*50*time.Millisecond,
		Ratio:  1,
	})
}

func Test_CreateProgressPlot(t *testing.T) {
	t.Run("Creating progress plot should succeed", func(t *testing.T) {
		got, err := CreateProgressPlot(getSamples(20))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if diff := cmp.Diff("Progress", got.Y.Label.Text); diff != "" {
			t.Errorf("Plot label mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Creating progress plot without samples should fail", func(t *testing.T) {
		_, err := CreateProgressPlot(nil)
		if !errors.Is(err, ErrNoSamples) {
			t.Errorf("Expecting ErrNoSamples, got: %v", err)
		}
	})
}

func Test_CreateHistogramPlot(t *testing.T) {
	steps := Steps(getSamples(20), "image")
	name := "Test step"

	t.Run("Creating histogram plot should succeed", func(t *testing.T) {
		got, err := CreateHistogramPlot(steps, name)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if diff := cmp.Diff(name, got.X.Label.Text); diff != "" {
			t.Errorf("Plot label mismatch (-want +got):\n%s", diff)
		}
	})
}

func Test_CreateCDFPlot(t *testing.T) {
	steps := Steps(getSamples(20), "image")
	name := "Test step"

	t.Run("Creating CDF plot should succeed", func(t *testing.T) {
		got, err := CreateCDFPlot(steps, name)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if diff := cmp.Diff(name, got.X.Label.Text); diff != "" {
			t.Errorf("Plot label mismatch (-want +got):\n%s", diff)
		}
	})
}

func Test_MultiPlotProgress(t *testing.T) {
	tests := map[string]struct {
		samples []metric.Sample
	}{
		"With step distribution": {samples: getSamples(30)},
		"Timeline only":          {samples: []metric.Sample{{Stage: "image", Offset: time.Second, Ratio: 1}}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			outFile := path.Join(t.TempDir(), "progress.png")
			if err := MultiPlotProgress(tc.samples, "Test plot title", outFile); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			fi, err := os.Stat(outFile)
			if err != nil {
				t.Fatalf("Unexpected error from os.Stat: %v", err)
			}

			// We can't realistically check generated image, instead will do some
			// reasonable check on file properties.
			if fi.Size() <= 10 {
				t.Errorf("Resulting plot file size too small: %+v", fi)
			}
		})
	}

	t.Run("Should fail without samples", func(t *testing.T) {
		outFile := path.Join(t.TempDir(), "progress.png")
		if err := MultiPlotProgress(nil, "Empty", outFile); !errors.Is(err, ErrNoSamples) {
			t.Errorf("Expecting ErrNoSamples, got: %v", err)
		}
		if _, err := os.Stat(outFile); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Plot file should not be created, stat error: %v", err)
		}
	})
}
