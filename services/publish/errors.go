// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package publish implements the article publishing state machine and the
// stage, promote, backup, rollback pipeline.
//
// # State machine
//
// unpublished → staged → published, with rejected reachable from
// unpublished (terminal) and published → staged for re-edits. No
// transition is ever partially committed: either the full write plus
// ledger append completes, or the article's publishing block is left
// exactly as it was.
//
// # Concurrency
//
// At most one in-flight transition per article, and one production writer
// at a time, enforced with lease-based locks. A caller losing the race
// gets a Busy error immediately rather than queueing.
package publish

import "errors"

// Error taxonomy for publishing transitions. Handlers map these onto
// HTTP status codes; callers decide retryability from them.
var (
	// ErrNotFound covers unknown articles and unknown backup ids.
	// Reported to the caller, never retried.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed means the article is in the wrong state for
	// the requested transition (e.g. promoting an unstaged article).
	// The caller must re-stage, not retry.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrBusy means another transition holds the article or environment
	// lock. Safe to retry with backoff.
	ErrBusy = errors.New("operation in flight")

	// ErrStorageUnavailable means the object store or CDN kept failing
	// after bounded retries. The transition did not commit.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrBackupFailed means the pre-promotion snapshot could not be
	// verified complete. The promotion was aborted before any
	// production write: fatal to the attempt, never destructive.
	ErrBackupFailed = errors.New("backup failed")
)
