// Package fakebackend turns a test binary into a framed-protocol backend.
//
// A test package calls RunIfRequested from TestMain. When the EnvVar is set
// the binary behaves as a backend and exits without running any tests:
//
//	func TestMain(m *testing.M) {
//	    fakebackend.RunIfRequested()
//	    os.Exit(m.Run())
//	}
//
// Tests then spawn os.Args[0] as the backend after setting the EnvVar.
package fakebackend

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bft-labs/framedrive/internal/frame"
)

// EnvVar selects the fake behavior.
const EnvVar = "FRAMEDRIVE_FAKE_BACKEND"

// Behaviors understood by RunIfRequested.
const (
	// Echo replies "len:<n>" for every frame read, then exits.
	Echo = "echo"
	// EchoHang replies like Echo and then keeps running until terminated.
	EchoHang = "echo-hang"
	// Garbage writes an invalid header and keeps running.
	Garbage = "garbage"
	// Hang writes nothing and keeps running.
	Hang = "hang"
	// IgnoreTerm ignores SIGTERM so only a kill stops it.
	IgnoreTerm = "ignore-term"
	// Fail exits with status 3 without output.
	Fail = "fail"
)

// RunIfRequested runs the fake backend and exits when EnvVar is set.
// Input frames are read from the file named by the first argument, or from
// stdin when there is none.
func RunIfRequested() {
	mode := os.Getenv(EnvVar)
	if mode == "" {
		return
	}
	os.Exit(run(mode, os.Args[1:]))
}

func run(mode string, args []string) int {
	switch mode {
	case Echo, EchoHang:
		if err := echo(args); err != nil {
			fmt.Fprintln(os.Stderr, "fake backend:", err)
			return 2
		}
		if mode == EchoHang {
			hang()
		}
		return 0
	case Garbage:
		fmt.Fprint(os.Stdout, "Bogus-Header: 3\r\n\r\nabc")
		hang()
		return 0
	case Hang:
		hang()
		return 0
	case IgnoreTerm:
		ignoreTerm()
		hang()
		return 0
	case Fail:
		return 3
	}
	fmt.Fprintln(os.Stderr, "fake backend: unknown mode", mode)
	return 2
}

func echo(args []string) error {
	var in io.Reader = os.Stdin
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	w := frame.NewWriter(os.Stdout)
	for msg, err := range frame.Messages(in) {
		if err != nil {
			return err
		}
		if err := w.WriteFrame(fmt.Sprintf("len:%d", len(msg))); err != nil {
			return err
		}
	}
	return nil
}

func hang() {
	time.Sleep(time.Hour)
}
