//go:build windows

/*
File Name:  Control Windows.go
Package:    reuseport

Windows has no SO_REUSEPORT equivalent; SO_REUSEADDR (and, for the
broadcast discovery socket, SO_BROADCAST) via golang.org/x/sys/windows
is all that is applied.
*/

package reuseport

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func controlReuseAddr(network, address string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		setErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}

func controlReuseAddrBroadcast(network, address string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		if setErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1); setErr != nil {
			return
		}
		setErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}
