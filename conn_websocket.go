package realtime

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

const writeWait = 10 * time.Second

// wsConn implements Conn on a fasthttp websocket.
type wsConn struct {
	params OpenConnectionParams
	dialer *websocket.Dialer
	logger Logger

	conn *websocket.Conn
	recv chan<- Envelope

	writeMu sync.Mutex

	closeChan       CloseChan
	closeOnce       sync.Once
	closeReason     error
	closeReasonOnce sync.Once
}

// NewWebsocketConnFactory returns the production ConnFactory using the given
// dialer. A nil dialer uses websocket.DefaultDialer.
func NewWebsocketConnFactory(dialer *websocket.Dialer) ConnFactory {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return func(params OpenConnectionParams, recv chan<- Envelope, logger Logger) Conn {
		return &wsConn{
			params:    params,
			dialer:    dialer,
			recv:      recv,
			closeChan: make(CloseChan),
			logger:    logger.WithField("net", "ws_connection"),
		}
	}
}

func (w *wsConn) Open(ctx context.Context) error {
	conn, resp, err := w.dialer.DialContext(ctx, w.params.URL.String(), w.params.Header)
	if err = w.classifyDialError(resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s", redactedURL(w.params.URL), err)
		return err
	}

	w.logger.Debugf("success opening connection to %s", redactedURL(w.params.URL))

	w.conn = conn
	go w.read()

	return nil
}

// Write sends one envelope as a JSON text frame.
func (w *wsConn) Write(env Envelope) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if w.conn == nil {
		return ErrNotConnected
	}
	select {
	case <-w.closeChan:
		return ErrConnectionClosed
	default:
	}

	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteJSON(env); err != nil {
		w.setCloseReason(errors.Wrap(ErrConnectionClosed, err.Error()))
		w.safeClose()
		return errors.Wrap(ErrConnectionClosed, err.Error())
	}
	return nil
}

func (w *wsConn) Close(code int, reason string) {
	w.setCloseReason(&CloseError{Code: code, Reason: reason})
	w.closeOnce.Do(func() {
		if w.conn != nil {
			deadline := time.Now().Add(time.Second)
			_ = w.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(code, reason),
				deadline,
			)
			_ = w.conn.Close()
		}
		close(w.closeChan)
	})
}

func (w *wsConn) CloseChan() CloseChan {
	return w.closeChan
}

func (w *wsConn) CloseErr() error {
	return w.closeReason
}

func (w *wsConn) read() {
	defer w.safeClose()

	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				w.setCloseReason(&CloseError{Code: closeErr.Code, Reason: closeErr.Text})
			} else {
				w.setCloseReason(errors.Wrap(ErrConnectionClosed, err.Error()))
			}
			return
		}

		env, err := ParseEnvelope(raw)
		if err != nil {
			// Malformed frames are dropped; they must not affect dispatch
			// for other in-flight messages.
			w.logger.Warnf("discarding malformed frame: %s", err)
			continue
		}

		select {
		case w.recv <- env:
		case <-w.closeChan:
			return
		}
	}
}

func (w *wsConn) safeClose() {
	w.closeOnce.Do(func() {
		if w.conn != nil {
			_ = w.conn.Close()
		}
		close(w.closeChan)
	})
}

func (w *wsConn) setCloseReason(err error) {
	w.closeReasonOnce.Do(func() {
		w.closeReason = err
	})
}

func (w *wsConn) classifyDialError(resp *http.Response, err error) error {
	var msg string
	if resp != nil {
		if resp.Body != nil {
			if bts, readErr := io.ReadAll(resp.Body); readErr == nil {
				msg = string(bts)
			}
		}
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return errors.Wrap(ErrRateLimited, msg)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(ErrAuthRejected, msg)
		}
	}

	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}
	return nil
}

// redactedURL strips the query so credentials never reach the logs.
func redactedURL(u url.URL) string {
	u.RawQuery = ""
	return u.String()
}
