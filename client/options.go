package client

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/c360/simkernel/pkg/security"
)

// ClientOption configures a Client before Dial opens the connection.
type ClientOption func(*Client) error

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("dial timeout must be positive")
		}
		c.dialTimeout = d
		return nil
	}
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("write timeout must be positive")
		}
		c.writeTimeout = d
		return nil
	}
}

// WithHandshakeTimeout bounds the WebSocket upgrade handshake.
func WithHandshakeTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("handshake timeout must be positive")
		}
		c.handshakeTimeout = d
		return nil
	}
}

// WithMaxFrameSize caps frames in both directions. Zero keeps the default.
func WithMaxFrameSize(n uint32) ClientOption {
	return func(c *Client) error {
		if n > 0 {
			c.maxFrameSize = n
		}
		return nil
	}
}

// WithAuthToken sends a bearer token during the WebSocket handshake. The
// TCP listener runs on trusted networks and carries no authentication, so
// the token is ignored for tcp addresses.
func WithAuthToken(token string) ClientOption {
	return func(c *Client) error {
		c.authToken = token
		return nil
	}
}

// WithTLS enables TLS with the given client configuration. For "wss"
// addresses TLS is already implied and this only supplies the CA and mTLS
// material.
func WithTLS(cfg security.ClientTLSConfig) ClientOption {
	return func(c *Client) error {
		c.tlsEnabled = true
		c.tlsConfig = cfg
		return nil
	}
}
