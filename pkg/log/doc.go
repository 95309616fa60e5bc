/*
Package log provides structured logging for dicc using zerolog.

The package wraps a single global zerolog.Logger that is configured once at
process start via Init and then specialised per component with the With*
helpers. Every worker, platform and assignment log line carries the fields
needed to correlate it with coordinator-side records.

# Configuration

	log.Init(log.Config{
		Level:      log.ParseLevel("debug"),
		JSONOutput: true,
	})

Console output (the default) is meant for operators running the worker in a
terminal; JSON output is meant for log shippers.

# Context Loggers

  - WithComponent("registry")  adds component=registry
  - WithWorkerID("4f1c...")    adds component=worker worker_id=4f1c...
  - WithPlatformID(1)          adds platform_id=1
  - WithAssignmentID(7)        adds assignment_id=7

Child loggers are values and are safe to copy into each worker goroutine.
*/
package log
