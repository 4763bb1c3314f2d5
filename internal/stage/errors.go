// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stage

import "fmt"

// LaunchError is returned when stage process could not be started, e.g. missing binary.
type LaunchError struct {
	Stage Name
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("%s stage: launch: %v", e.Stage, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// FailureError is returned when stage process terminated abnormally.
type FailureError struct {
	Stage Name
	Err   error
	// Stderr holds the tail of process diagnostic output
	Stderr string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}
