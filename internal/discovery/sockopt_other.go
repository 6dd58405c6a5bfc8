//go:build !unix

package discovery

import "syscall"

func allowReuse(network, address string, c syscall.RawConn) error { return nil }

func allowBroadcast(network, address string, c syscall.RawConn) error { return nil }
