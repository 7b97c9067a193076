package eventloop

import (
	"context"
	"fmt"
	"log"
	"time"

	"text-listener/src/singleinstance"
)

const remoteReplyTimeout = 5 * time.Second

// ServeRemote answers single-instance requests by posting commands to the
// loop. It blocks until ctx is cancelled or the server closes.
func ServeRemote(ctx context.Context, srv singleinstance.Server, l *Loop) {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		go handleConn(ctx, conn, l)
	}
}

func handleConn(ctx context.Context, conn singleinstance.Conn, l *Loop) {
	defer conn.Close()

	reply, err := dispatch(ctx, conn.Request(), l)
	if err != nil {
		log.Printf("Remote %s failed: %v", conn.Request().Action, err)
		_ = conn.RespondError(err.Error())
		return
	}
	_ = conn.RespondSuccess(reply)
}

func dispatch(ctx context.Context, req singleinstance.Request, l *Loop) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteReplyTimeout)
	defer cancel()

	switch req.Action {
	case singleinstance.ActionRead:
		done := make(chan error, 1)
		if !l.Post(ReadSelection{Reply: done}) {
			return "", errLoopStopped
		}
		select {
		case err := <-done:
			return "", err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	case singleinstance.ActionStop:
		return post(l, Stop{})
	case singleinstance.ActionPause:
		return post(l, Pause{})
	case singleinstance.ActionResume:
		return post(l, Resume{})
	case singleinstance.ActionStatus:
		st := make(chan Status, 1)
		if !l.Post(QueryStatus{Reply: st}) {
			return "", errLoopStopped
		}
		select {
		case s := <-st:
			return s.String(), nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	case singleinstance.ActionShortcut:
		done := make(chan error, 1)
		if !l.Post(SetShortcut{Combo: req.Arg, Reply: done}) {
			return "", errLoopStopped
		}
		select {
		case err := <-done:
			if err != nil {
				return "", err
			}
			return "shortcut=" + req.Arg, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	default:
		return "", fmt.Errorf("unsupported action %q", req.Action)
	}
}

func post(l *Loop, c Command) (string, error) {
	if !l.Post(c) {
		return "", errLoopStopped
	}
	return "", nil
}
