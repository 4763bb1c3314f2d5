// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transcode

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/evolution-gaming/framestrip/internal/logging"
	"github.com/gofrs/flock"
)

const lockFileName = ".lock"

// ErrOriginLocked is returned when another transcode holds the origin lock.
var ErrOriginLocked = errors.New("origin is locked by another transcode")

// lockOrigin takes a non-blocking exclusive lock on origin root. Returned func releases it.
func lockOrigin(root string) (func(), error) {
	l := flock.New(filepath.Join(root, lockFileName))
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", root, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", root, ErrOriginLocked)
	}
	return func() {
		if err := l.Unlock(); err != nil {
			logging.Warnf("Unlocking %s: %s", root, err)
		}
	}, nil
}
