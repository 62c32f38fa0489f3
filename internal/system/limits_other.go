//go:build !linux && !darwin

package system

import "github.com/rs/zerolog"

func RaiseOpenFileLimit(uint64, zerolog.Logger) {}
