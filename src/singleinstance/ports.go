package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

const (
	minPort = 1024
	maxPort = 65535

	findTimeout = 300 * time.Millisecond
)

// PortRange is the inclusive loopback range shared by the resident and its
// clients. The resident binds Start; clients scan the whole range.
type PortRange struct {
	Start int
	End   int
}

func (r PortRange) String() string {
	r = r.normalized()
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// normalized clamps the range to unprivileged ports and orders its bounds.
func (r PortRange) normalized() PortRange {
	r.Start = min(max(r.Start, minPort), maxPort)
	r.End = min(max(r.End, minPort), maxPort)
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r
}

// FindResident returns the first port in the range whose listener answers
// the PING handshake.
func (r PortRange) FindResident(ctx context.Context) (int, bool) {
	timeout := dialTimeout(ctx, findTimeout)
	r = r.normalized()
	for port := r.Start; port <= r.End; port++ {
		if ctx.Err() != nil {
			return 0, false
		}
		if answersPing(residentAddr(port), timeout) {
			return port, true
		}
	}
	return 0, false
}

func residentAddr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}

// dialTimeout is the time left on ctx, or def when ctx has no deadline.
func dialTimeout(ctx context.Context, def time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return def
}

func answersPing(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write([]byte(pingRequest)); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
