//go:build linux || darwin

package system

import (
	"syscall"

	"github.com/rs/zerolog"
)

// RaiseOpenFileLimit lifts the soft RLIMIT_NOFILE to want, capped at the
// hard limit. Each recording holds three pipes open.
func RaiseOpenFileLimit(want uint64, logger zerolog.Logger) {
	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		logger.Warn().Err(err).Msg("read open file limit")
		return
	}
	if lim.Cur >= want {
		return
	}
	lim.Cur = want
	if lim.Cur > lim.Max {
		lim.Cur = lim.Max
	}
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		logger.Warn().Err(err).Msg("raise open file limit")
		return
	}
	logger.Debug().Uint64("limit", lim.Cur).Msg("open file limit raised")
}
