// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Batch plan configuration related tests.

package plan

import (
	"encoding/json"
	"os"
	"path"
	"reflect"
	"testing"

	"github.com/evolution-gaming/framestrip/internal/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixInput fixture creates an existing (fake) input video file.
func fixInput(t *testing.T, name string) string {
	p := path.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("video"), 0o644))
	return p
}

func boolPtr(b bool) *bool {
	return &b
}

func TestNewPlanConfigFromJSON(t *testing.T) {
	tests := map[string]struct {
		err   error
		want  PlanConfig
		given []byte
	}{
		"Positive": {
			given: []byte(`{
				"quality": 720,
				"jobs": [
					{"input": "src/vid1.mp4", "origin_id": "vid1"},
					{"input": "src/vid2.mp4", "quality": 320, "audio": false}
				]
			}`),
			want: PlanConfig{
				Quality: 720,
				Jobs: []Job{
					{Input: "src/vid1.mp4", OriginID: "vid1"},
					{Input: "src/vid2.mp4", Quality: 320, Audio: boolPtr(false)},
				},
			},
			err: nil,
		},
		"Positive incomplete JSON": {
			given: []byte(`{ "jobs": [{"input": "input1"}]}`),
			want:  PlanConfig{Jobs: []Job{{Input: "input1"}}},
			err:   nil,
		},
		"Negative invalid JSON": {
			given: []byte("]"),
			want:  PlanConfig{},
			err:   &json.SyntaxError{},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := NewPlanConfigFromJSON(tc.given)

			if tc.err == nil {
				assert.NoError(t, err)
			} else {
				gotE := reflect.TypeOf(err)
				wantE := reflect.TypeOf(tc.err)
				assert.Equal(t, wantE, gotE)
			}
			assert.Equal(t, tc.want, got, "PlanConfig mismatch")
		})
	}
}

func TestPlanConfigIsValid(t *testing.T) {
	in := fixInput(t, "clip.mp4")
	pc := PlanConfig{
		Jobs: []Job{
			{Input: in, OriginID: "a"},
			{Input: in, OriginID: "b", Quality: 320},
			{Input: in},
			{Input: in},
		},
	}
	validState, err := pc.IsValid()
	assert.True(t, validState)
	assert.NoError(t, err)
}

func TestNegativePlanConfigIsValid(t *testing.T) {
	wantErrorMsg := "validation error"
	in := fixInput(t, "clip.mp4")
	tests := map[string]struct {
		given       PlanConfig
		wantReasons []string
	}{
		"Negative nil value": {
			given:       PlanConfig{},
			wantReasons: []string{"Jobs missing"},
		},
		"Negative quality": {
			given: PlanConfig{Quality: -1, Jobs: []Job{{Input: in, Quality: -5}}},
			wantReasons: []string{
				"Negative quality: -1",
				"Job 0: negative quality: -5",
			},
		},
		"Negative input missing": {
			given:       PlanConfig{Jobs: []Job{{OriginID: "x"}}},
			wantReasons: []string{"Job 0: input missing"},
		},
		"Negative duplicate origins": {
			given: PlanConfig{Jobs: []Job{
				{Input: in, OriginID: "same"},
				{Input: in, OriginID: "same"},
			}},
			wantReasons: []string{"Duplicate origin_id detected"},
		},
		"Negative nested origin": {
			given:       PlanConfig{Jobs: []Job{{Input: in, OriginID: "../escape"}}},
			wantReasons: []string{`Job 0: origin_id is not a plain directory name: "../escape"`},
		},
		"Negative wrong file in input": {
			given:       PlanConfig{Jobs: []Job{{Input: "no_existent_file"}}},
			wantReasons: []string{"stat no_existent_file: no such file or directory"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			validState, err := tc.given.IsValid()
			assert.ErrorContains(t, err, wantErrorMsg)
			assert.False(t, validState)

			// Cast error in order to check Reasons().
			gotErr, ok := err.(*PlanConfigError)
			require.Truef(t, ok, "Unexpected error type, want PlanConfigError, got %T", err)
			assert.Equal(t, tc.wantReasons, gotErr.Reasons())
		})
	}
}

func TestNewPlanConfigFromFile(t *testing.T) {
	in := fixInput(t, "clip.mp4")
	dir := t.TempDir()

	t.Run("Valid plan file", func(t *testing.T) {
		f := path.Join(dir, "plan.json")
		b, err := json.Marshal(Template([]string{in}))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(f, b, 0o644))

		pc, err := NewPlanConfigFromFile(f)
		require.NoError(t, err)
		assert.Equal(t, []Job{{Input: in, OriginID: "clip"}}, pc.Jobs)
	})

	t.Run("Invalid plan file", func(t *testing.T) {
		f := path.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(f, []byte(`{"jobs": []}`), 0o644))

		_, err := NewPlanConfigFromFile(f)
		var pce *PlanConfigError
		assert.ErrorAs(t, err, &pce)
	})

	t.Run("Missing plan file", func(t *testing.T) {
		_, err := NewPlanConfigFromFile(path.Join(dir, "missing.json"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestTemplate(t *testing.T) {
	got := Template([]string{"a/clip.mp4", "b/clip.mov", "c/other.mp4", "d/clip"})

	want := []Job{
		{Input: "a/clip.mp4", OriginID: "clip"},
		{Input: "b/clip.mov", OriginID: "clip_1"},
		{Input: "c/other.mp4", OriginID: "other"},
		{Input: "d/clip", OriginID: "clip_2"},
	}
	assert.Equal(t, want, got.Jobs)
}

func TestPlanConfigRequests(t *testing.T) {
	pc := PlanConfig{
		Quality: 720,
		Jobs: []Job{
			{Input: "a.mp4", OriginID: "a"},
			{Input: "b.mp4", Quality: 320, Audio: boolPtr(false)},
		},
	}

	got := pc.Requests("/out")

	want := []transcode.Request{
		{InputPath: "a.mp4", OutputDir: "/out", OriginID: "a", Quality: 720},
		{InputPath: "b.mp4", OutputDir: "/out", Quality: 320, Options: transcode.Options{Audio: boolPtr(false)}},
	}
	assert.Equal(t, want, got)
}

func TestHasDuplicatesTable(t *testing.T) {
	tests := map[string]struct {
		given []string
		want  bool
	}{
		"No duplicates": {
			given: []string{"aaa", "bbb", "ccc", "ddd"},
			want:  false,
		},
		"No duplicates empty": {
			given: []string{},
			want:  false,
		},
		"With duplicates": {
			given: []string{"aaa", "bbb", "ccc", "aaa", "ddd"},
			want:  true,
		},
		"With duplicate empty strings": {
			given: []string{"", "bbb", "ccc", "", "ddd"},
			want:  true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := hasDuplicates(tc.given)
			assert.Equal(t, tc.want, got)
		})
	}
}
