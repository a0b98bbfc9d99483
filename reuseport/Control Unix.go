//go:build !windows

/*
File Name:  Control Unix.go
Package:    reuseport

SO_REUSEADDR/SO_REUSEPORT/SO_BROADCAST via golang.org/x/sys/unix, applied
through the net.ListenConfig.Control hook on the raw file descriptor
before bind(2) happens.
*/

package reuseport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func controlReuseAddr(network, address string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		setErr = setReuseAddrPort(fd)
	})
	if err != nil {
		return err
	}
	return setErr
}

func controlReuseAddrBroadcast(network, address string, c syscall.RawConn) error {
	var setErr error
	err := c.Control(func(fd uintptr) {
		if setErr = setReuseAddrPort(fd); setErr != nil {
			return
		}
		setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return setErr
}

func setReuseAddrPort(fd uintptr) error {
	if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return err
	}

	// SO_REUSEPORT lets multiple listeners load-balance the same port;
	// ignore the error on the rare Unix variant that lacks it.
	_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	return nil
}
