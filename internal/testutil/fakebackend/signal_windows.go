//go:build windows

package fakebackend

func ignoreTerm() {}
