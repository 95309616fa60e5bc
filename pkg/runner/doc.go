// Package runner executes local processes described by a CommandSpec and
// captures their stdout, stderr, exit status and wall-clock duration.
//
// Platform detectors and project binaries are both run through a Runner, so
// tests can substitute stub executables or a fake Runner without touching the
// worker loop.
package runner
