// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lock

import (
	"errors"
	"fmt"
)

// Sentinel errors for lock operations.
var (
	// ErrLockHeld is returned when a key already has a live lease.
	ErrLockHeld = errors.New("lock is held")

	// ErrEmptyKey is returned when Acquire is called with an empty key.
	ErrEmptyKey = errors.New("lock key must not be empty")
)

// LockError carries the contested key and current holder for Busy
// responses. Supports errors.Is(err, ErrLockHeld) via Unwrap.
type LockError struct {
	Key    string
	Holder string
	Err    error
}

func (e *LockError) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("lock %q held by %s", e.Key, e.Holder)
	}
	return fmt.Sprintf("lock %q held", e.Key)
}

func (e *LockError) Unwrap() error {
	return e.Err
}
