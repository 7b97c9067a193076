package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

var ErrBadResponse = errors.New("resident sent a malformed response")

type tcpClient struct {
	ports PortRange
}

func (c *tcpClient) Send(ctx context.Context, req Request) (bool, string, error) {
	port, ok := c.ports.FindResident(ctx)
	if !ok {
		return false, "", nil
	}
	reply, err := request(residentAddr(port), req, dialTimeout(ctx, 2*time.Second))
	return true, reply, err
}

func request(addr string, req Request, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(req.line()); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	body, _ := io.ReadAll(br)
	switch status {
	case "SUCCESS\n":
		return string(body), nil
	case "ERROR\n":
		return "", errors.New(string(body))
	default:
		return "", fmt.Errorf("%w: %q", ErrBadResponse, status)
	}
}
