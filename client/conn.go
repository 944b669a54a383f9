package client

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/pkg/tlsutil"
	"github.com/c360/simkernel/wire"
)

// conn is the framing layer under the Client. Implementations guarantee that
// any error which may have left the stream in an unknown state wraps
// kerrors.ErrNetworkDisconnected or kerrors.ErrProtocolError; errors that
// provably wrote nothing (a frame that fails to encode) carry neither, so
// the caller knows the connection is still usable.
type conn interface {
	writeFrame(f *wire.Frame) error
	readFrame() (*wire.Frame, error)
	close() error
	remoteAddr() string
}

// tcpConn frames documents with the 4-byte length prefix over a byte stream.
type tcpConn struct {
	nc           net.Conn
	br           *bufio.Reader
	maxFrame     uint32
	writeTimeout time.Duration
}

func dialTCP(hostport string, c *Client) (conn, error) {
	dialer := &net.Dialer{Timeout: c.dialTimeout}

	var nc net.Conn
	var err error
	if c.tlsEnabled {
		tlsConfig, cfgErr := tlsutil.LoadClientTLSConfigWithMTLS(c.tlsConfig, c.tlsConfig.MTLS)
		if cfgErr != nil {
			return nil, kerrors.WrapInvalid(cfgErr, "Client", "Dial", "load TLS config")
		}
		nc, err = tls.DialWithDialer(dialer, "tcp", hostport, tlsConfig)
	} else {
		nc, err = dialer.Dial("tcp", hostport)
	}
	if err != nil {
		return nil, kerrors.WrapTransient(err, "Client", "Dial", "connect "+hostport)
	}

	return &tcpConn{
		nc:           nc,
		br:           bufio.NewReader(nc),
		maxFrame:     c.maxFrameSize,
		writeTimeout: c.writeTimeout,
	}, nil
}

func (t *tcpConn) writeFrame(f *wire.Frame) error {
	if err := t.nc.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %v: %w", err, kerrors.ErrNetworkDisconnected)
	}
	return wire.WriteFrame(t.nc, f, t.maxFrame)
}

func (t *tcpConn) readFrame() (*wire.Frame, error) {
	return wire.ReadFrame(t.br, t.maxFrame)
}

func (t *tcpConn) close() error {
	return t.nc.Close()
}

func (t *tcpConn) remoteAddr() string {
	return t.nc.RemoteAddr().String()
}

// wsConn carries one document per text message.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
}

func dialWS(rawURL string, c *Client) (conn, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
	if c.tlsEnabled {
		tlsConfig, err := tlsutil.LoadClientTLSConfigWithMTLS(c.tlsConfig, c.tlsConfig.MTLS)
		if err != nil {
			return nil, kerrors.WrapInvalid(err, "Client", "Dial", "load TLS config")
		}
		dialer.TLSClientConfig = tlsConfig
	}

	var header http.Header
	if c.authToken != "" {
		header = http.Header{}
		header.Set("Authorization", "Bearer "+c.authToken)
	}

	ws, resp, err := dialer.Dial(rawURL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusUnauthorized {
				return nil, kerrors.WrapInvalid(
					fmt.Errorf("server rejected credentials: %w", kerrors.ErrInvalidConfig),
					"Client", "Dial", "authenticate")
			}
		}
		return nil, kerrors.WrapTransient(err, "Client", "Dial", "connect "+rawURL)
	}

	// Oversized inbound messages fail the next read; gorilla answers them
	// with a 1009 close frame on its own.
	ws.SetReadLimit(int64(c.maxFrameSize))

	return &wsConn{ws: ws, writeTimeout: c.writeTimeout}, nil
}

func (w *wsConn) writeFrame(f *wire.Frame) error {
	data, err := wire.Encode(f)
	if err != nil {
		return err
	}
	if err := w.ws.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %v: %w", err, kerrors.ErrNetworkDisconnected)
	}
	if err := w.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write message: %v: %w", err, kerrors.ErrNetworkDisconnected)
	}
	return nil
}

func (w *wsConn) readFrame() (*wire.Frame, error) {
	msgType, data, err := w.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read message: %v: %w", err, kerrors.ErrNetworkDisconnected)
	}
	if msgType != websocket.TextMessage {
		return nil, fmt.Errorf("non-text message from server: %w", kerrors.ErrProtocolError)
	}
	return wire.Decode(data)
}

func (w *wsConn) close() error {
	// Best-effort close handshake; the server treats a bare TCP close the
	// same way, just without the status code.
	deadline := time.Now().Add(time.Second)
	_ = w.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return w.ws.Close()
}

func (w *wsConn) remoteAddr() string {
	return w.ws.RemoteAddr().String()
}
