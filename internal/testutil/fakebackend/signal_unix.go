//go:build !windows

package fakebackend

import (
	"os/signal"
	"syscall"
)

func ignoreTerm() {
	signal.Ignore(syscall.SIGTERM)
}
