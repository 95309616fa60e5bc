/*
Package worker implements the polling agents that claim, execute and report
assignments.

# Architecture

A node runs a Pool of identical workers, one goroutine each. Startup work
(platform detection, project discovery) is finished before the pool starts;
every worker then receives its own coordinator handle, executor, cloned
project list and copied platform ID list. Workers share nothing but the
artifact cache on disk, which the download package guards per path.

	┌──────────────────────────── NODE ─────────────────────────────┐
	│                                                               │
	│   ┌──────────┐   ┌──────────┐          ┌──────────┐           │
	│   │ Worker 1 │   │ Worker 2 │   ...    │ Worker N │           │
	│   └────┬─────┘   └────┬─────┘          └────┬─────┘           │
	│        │ poll / submit (own client)         │                 │
	│        ▼              ▼                     ▼                 │
	│   ┌─────────────────────────────────────────────────┐         │
	│   │         Fetcher (shared, keyed path locks)      │         │
	│   └─────────────────────────────────────────────────┘         │
	│        <data-dir>/platforms  <data-dir>/projects              │
	└───────────────────────────────────────────────────────────────┘

# Worker Loop

Each worker repeats:

	Poll ──► no work ──► sleep IdleBackoff (60s) ──► Poll
	  │
	  └────► assignments ──► for each: Execute ──► Submit ──► Poll

Only BatchSize (1) task is requested per poll. Assignments of one worker
run strictly one after another.

# Error Handling

Errors from a cycle are classified rather than treated alike:

  - stopped: the context ended; Run returns nil.
  - task-scoped: the binary failed (executor.ErrExecutionFailed), no
    platform matches (executor.ErrPlatformNotFound) or the project binary
    could not be fetched for good (*download.FetchError with a checksum
    mismatch or a 4xx). The assignment is logged, counted and dropped;
    nothing is submitted or recorded for it. The worker then waits with
    exponential backoff before polling again, so a broken project cannot
    drive it into a tight claim-and-fail loop.
  - transient: the error has a Transient() bool method returning true
    (coordinator or artifact source 5xx, 429, 408, connection failures)
    or is a timeout. The worker waits with exponential backoff and polls
    again. Submissions are retried a few times before the result is given
    up.

The backoff is shared by both cases and reset after a clean cycle.
  - fatal: anything else (bad credentials, malformed answers, local
    filesystem failures). Run returns the error; other workers keep going.

# Testing

Sleeping goes through Clock so tests can drive idle and error waits
without real time passing.
*/
package worker
