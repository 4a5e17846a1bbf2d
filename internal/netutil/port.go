package netutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var ErrNoBindAddr = errors.New("no available bind address")

// SelectBindAddr returns preferred when it can be listened on, otherwise the
// first free candidate when autoFallback is set.
func SelectBindAddr(preferred string, candidates []string, autoFallback bool) (string, error) {
	if preferred != "" {
		if IsAddrAvailable(preferred) {
			return preferred, nil
		}
		if !autoFallback {
			return "", fmt.Errorf("bind address in use: %s", preferred)
		}
	}

	for _, addr := range candidates {
		if IsAddrAvailable(addr) {
			return addr, nil
		}
	}
	return "", ErrNoBindAddr
}

// NextPorts returns n addresses on the host of addr with the ports following
// its port, e.g. "127.0.0.1:8189" -> "127.0.0.1:8190", "127.0.0.1:8191".
func NextPorts(addr string, n int) ([]string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("bind address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("bind address %q: invalid port", addr)
	}

	out := make([]string, 0, n)
	for i := 1; i <= n && port+i <= 65535; i++ {
		out = append(out, net.JoinHostPort(host, strconv.Itoa(port+i)))
	}
	return out, nil
}

// IsAddrAvailable reports whether addr can be listened on right now.
func IsAddrAvailable(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
