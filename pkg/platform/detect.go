package platform

import (
	"context"

	"github.com/cuemby/dicc/pkg/log"
	"github.com/cuemby/dicc/pkg/runner"
	"github.com/cuemby/dicc/pkg/types"
)

// Detect runs the detector of p stored at path and reports whether the
// platform is usable on this machine.
//
// The platform is valid only if the detector exits with status 0. Any other
// status, a crash or a spawn failure makes it invalid; none of these are
// errors.
func Detect(ctx context.Context, r runner.Runner, p types.Platform, path string) bool {
	logger := log.WithPlatformID(p.ID).With().Str("platform", p.Name).Logger()

	out, err := r.Run(ctx, p.Detector.Command(path))
	if err != nil {
		logger.Debug().Err(err).Msg("Detector did not run")
		return false
	}

	if !out.Success() {
		logger.Debug().
			Int("exit_code", out.ExitCode).
			Str("stderr", string(out.Stderr)).
			Msg("Detector rejected platform")
		return false
	}

	return true
}
