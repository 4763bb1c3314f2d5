// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Batch transcode plan configuration related abstractions.
package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evolution-gaming/framestrip/internal/transcode"
)

// PlanConfigError error type defines PlanConfig validation failures.
type PlanConfigError struct {
	msg     string
	reasons []string
}

func (e *PlanConfigError) Error() string {
	if len(e.reasons) > 0 {
		return fmt.Sprintf("%s with reasons:\n%s", e.msg, strings.Join(e.reasons, "\n"))
	}
	return e.msg
}

func (e *PlanConfigError) Reasons() []string {
	return e.reasons
}

func (e *PlanConfigError) addReason(reason string) {
	e.reasons = append(e.reasons, reason)
}

// Job is a single transcode of a plan.
type Job struct {
	Input string `json:"input"`
	// Random UUID is used when empty
	OriginID string `json:"origin_id,omitempty"`
	// Overrides plan level Quality when non-zero
	Quality int `json:"quality,omitempty"`
	// Extract audio track (if present), true when omitted
	Audio *bool `json:"audio,omitempty"`
}

// PlanConfig holds configuration of a batch of transcodes.
type PlanConfig struct {
	// Default max length of long edge of produced frames, 0 keeps original size
	Quality int   `json:"quality,omitempty"`
	Jobs    []Job `json:"jobs"`
}

// NewPlanConfigFromJSON will unmarshal JSON into PlanConfig instance.
func NewPlanConfigFromJSON(jdoc []byte) (PlanConfig, error) {
	var pc PlanConfig
	err := json.Unmarshal(jdoc, &pc)
	if err != nil {
		return pc, err
	}
	return pc, nil
}

// NewPlanConfigFromFile reads and validates plan configuration file.
func NewPlanConfigFromFile(fPath string) (PlanConfig, error) {
	b, err := os.ReadFile(fPath)
	if err != nil {
		return PlanConfig{}, fmt.Errorf("reading plan: %w", err)
	}
	pc, err := NewPlanConfigFromJSON(b)
	if err != nil {
		return pc, fmt.Errorf("parsing plan %s: %w", fPath, err)
	}
	if _, err := pc.IsValid(); err != nil {
		return pc, err
	}
	return pc, nil
}

// Template creates plan configuration for given inputs with origin identifiers derived
// from input file names.
func Template(inputs []string) PlanConfig {
	pc := PlanConfig{Jobs: make([]Job, 0, len(inputs))}
	seen := make(map[string]int)
	for _, in := range inputs {
		id := OriginFromPath(in)
		// Same file names from different directories
		if n := seen[id]; n > 0 {
			seen[id]++
			id = fmt.Sprintf("%s_%d", id, n)
		} else {
			seen[id] = 1
		}
		pc.Jobs = append(pc.Jobs, Job{Input: in, OriginID: id})
	}
	return pc
}

// OriginFromPath derives origin identifier from file name without extension.
func OriginFromPath(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (p *PlanConfig) IsValid() (bool, error) {
	errPlanConfig := &PlanConfigError{msg: "validation error"}

	if len(p.Jobs) == 0 {
		errPlanConfig.addReason("Jobs missing")
	}
	if p.Quality < 0 {
		errPlanConfig.addReason(fmt.Sprintf("Negative quality: %d", p.Quality))
	}

	var origins []string
	for i, j := range p.Jobs {
		if j.Input == "" {
			errPlanConfig.addReason(fmt.Sprintf("Job %d: input missing", i))
		} else if _, err := os.Stat(j.Input); err != nil {
			errPlanConfig.addReason(err.Error())
		}
		if j.Quality < 0 {
			errPlanConfig.addReason(fmt.Sprintf("Job %d: negative quality: %d", i, j.Quality))
		}
		if j.OriginID != "" {
			if !isPathComponent(j.OriginID) {
				errPlanConfig.addReason(fmt.Sprintf("Job %d: origin_id is not a plain directory name: %q", i, j.OriginID))
			}
			origins = append(origins, j.OriginID)
		}
	}
	if hasDuplicates(origins) {
		errPlanConfig.addReason("Duplicate origin_id detected")
	}

	// Check if there were any validation errors?
	if len(errPlanConfig.reasons) != 0 {
		return false, errPlanConfig
	}
	return true, nil
}

// Requests converts plan jobs into transcode requests writing into outDir.
func (p *PlanConfig) Requests(outDir string) []transcode.Request {
	reqs := make([]transcode.Request, 0, len(p.Jobs))
	for _, j := range p.Jobs {
		q := j.Quality
		if q == 0 {
			q = p.Quality
		}
		reqs = append(reqs, transcode.Request{
			InputPath: j.Input,
			OutputDir: outDir,
			OriginID:  j.OriginID,
			Quality:   q,
			Options:   transcode.Options{Audio: j.Audio},
		})
	}
	return reqs
}

// isPathComponent checks that s names a single directory entry.
func isPathComponent(s string) bool {
	return s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// hasDuplicates checks if slice has duplicate elements.
func hasDuplicates(items []string) bool {
	// Create a poor man's seen
	seen := make(map[string]struct{}, len(items))
	for _, v := range items {
		if _, ok := seen[v]; ok {
			return true
		} else {
			seen[v] = struct{}{}
		}
	}
	return false
}
