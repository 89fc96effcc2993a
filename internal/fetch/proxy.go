package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	checkProxyTimeout = 2 * time.Second

	socks5Version  = 0x05
	socks5AuthNone = 0x00
)

// CheckProxy performs a SOCKS5 greeting against address and reports whether
// the proxy accepts unauthenticated clients.
func CheckProxy(ctx context.Context, address string) error {
	if !isValidProxyAddress(address) {
		return ErrInvalidProxyAddress
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrProxyCannotConnect, address, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyCannotConnect, err)
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyCannotConnect, err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return fmt.Errorf("%w: %v", ErrProxyNotSOCKS5, err)
	}
	if resp[0] != socks5Version || resp[1] != socks5AuthNone {
		return ErrProxyNotSOCKS5
	}
	return nil
}

// isValidProxyAddress checks for "host:port" with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
