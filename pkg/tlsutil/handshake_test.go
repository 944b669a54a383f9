package tlsutil

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/simkernel/pkg/security"
)

// These tests drive loader output through live TLS connections on a loopback
// listener, the way the gateway wraps its TCP listener. Server-side handshake
// failures surface on the client as an alert during the first read, so every
// scenario performs one echo round trip instead of inspecting the handshake.

// startEcho serves one-shot echo connections with the given TLS config until
// the test ends.
func startEcho(t *testing.T, cfg *tls.Config) string {
	t.Helper()

	inner, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ln := tls.NewListener(inner, cfg)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				_ = c.SetDeadline(time.Now().Add(5 * time.Second))
				buf := make([]byte, 64)
				n, err := c.Read(buf)
				if err != nil {
					return
				}
				_, _ = c.Write(buf[:n])
			}(conn)
		}
	}()

	return ln.Addr().String()
}

func echoRoundTrip(addr string, cfg *tls.Config) error {
	conn, err := tls.Dial("tcp", addr, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	if _, err := conn.Write([]byte("ping")); err != nil {
		return err
	}
	reply := make([]byte, 4)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return err
	}
	if string(reply) != "ping" {
		return fmt.Errorf("echo mismatch: %q", reply)
	}
	return nil
}

func TestHandshakeServerVerification(t *testing.T) {
	dir := t.TempDir()
	serverCert, serverKey := writeKeyPair(t, dir, "server", "kernel-gateway")

	serverTLS, err := LoadServerTLSConfig(security.ServerTLSConfig{
		Enabled:  true,
		CertFile: serverCert,
		KeyFile:  serverKey,
	})
	require.NoError(t, err)
	addr := startEcho(t, serverTLS)

	t.Run("client trusting the gateway cert connects", func(t *testing.T) {
		clientTLS, err := LoadClientTLSConfig(security.ClientTLSConfig{
			CAFiles: []string{serverCert},
		})
		require.NoError(t, err)
		assert.NoError(t, echoRoundTrip(addr, clientTLS))
	})

	t.Run("client without the gateway cert is refused", func(t *testing.T) {
		clientTLS, err := LoadClientTLSConfig(security.ClientTLSConfig{})
		require.NoError(t, err)
		err = echoRoundTrip(addr, clientTLS)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown authority")
	})
}

func TestMutualAuthHandshake(t *testing.T) {
	dir := t.TempDir()
	serverCert, serverKey := writeKeyPair(t, dir, "server", "kernel-gateway")
	clientCert, clientKey := writeKeyPair(t, dir, "client", "skctl")

	serverTLS, err := LoadServerTLSConfigWithMTLS(
		security.ServerTLSConfig{
			Enabled:  true,
			CertFile: serverCert,
			KeyFile:  serverKey,
		},
		security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{clientCert},
			RequireClientCert: true,
		},
	)
	require.NoError(t, err)
	addr := startEcho(t, serverTLS)

	t.Run("client presenting a trusted certificate connects", func(t *testing.T) {
		clientTLS, err := LoadClientTLSConfigWithMTLS(
			security.ClientTLSConfig{CAFiles: []string{serverCert}},
			security.ClientMTLSConfig{
				Enabled:  true,
				CertFile: clientCert,
				KeyFile:  clientKey,
			},
		)
		require.NoError(t, err)
		assert.NoError(t, echoRoundTrip(addr, clientTLS))
	})

	t.Run("client presenting nothing is refused", func(t *testing.T) {
		clientTLS, err := LoadClientTLSConfigWithMTLS(
			security.ClientTLSConfig{CAFiles: []string{serverCert}},
			security.ClientMTLSConfig{},
		)
		require.NoError(t, err)
		assert.Error(t, echoRoundTrip(addr, clientTLS))
	})
}

func TestCNWhitelistHandshake(t *testing.T) {
	dir := t.TempDir()
	serverCert, serverKey := writeKeyPair(t, dir, "server", "kernel-gateway")
	allowedCert, allowedKey := writeKeyPair(t, dir, "allowed", "skctl")
	rogueCert, rogueKey := writeKeyPair(t, dir, "rogue", "rogue")

	// Both client certs chain, so only the CN gate separates them.
	serverTLS, err := LoadServerTLSConfigWithMTLS(
		security.ServerTLSConfig{
			Enabled:  true,
			CertFile: serverCert,
			KeyFile:  serverKey,
		},
		security.ServerMTLSConfig{
			Enabled:           true,
			ClientCAFiles:     []string{allowedCert, rogueCert},
			RequireClientCert: true,
			AllowedClientCNs:  []string{"skctl"},
		},
	)
	require.NoError(t, err)
	addr := startEcho(t, serverTLS)

	dial := func(certFile, keyFile string) error {
		clientTLS, err := LoadClientTLSConfigWithMTLS(
			security.ClientTLSConfig{CAFiles: []string{serverCert}},
			security.ClientMTLSConfig{
				Enabled:  true,
				CertFile: certFile,
				KeyFile:  keyFile,
			},
		)
		require.NoError(t, err)
		return echoRoundTrip(addr, clientTLS)
	}

	t.Run("whitelisted CN connects", func(t *testing.T) {
		assert.NoError(t, dial(allowedCert, allowedKey))
	})

	t.Run("unlisted CN is refused", func(t *testing.T) {
		err := dial(rogueCert, rogueKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad certificate")
	})
}

func TestOptionalClientCertHandshake(t *testing.T) {
	dir := t.TempDir()
	serverCert, serverKey := writeKeyPair(t, dir, "server", "kernel-gateway")
	clientCert, clientKey := writeKeyPair(t, dir, "client", "skctl")

	serverTLS, err := LoadServerTLSConfigWithMTLS(
		security.ServerTLSConfig{
			Enabled:  true,
			CertFile: serverCert,
			KeyFile:  serverKey,
		},
		security.ServerMTLSConfig{
			Enabled:       true,
			ClientCAFiles: []string{clientCert},
		},
	)
	require.NoError(t, err)
	require.Equal(t, tls.VerifyClientCertIfGiven, serverTLS.ClientAuth)
	addr := startEcho(t, serverTLS)

	t.Run("bare client admitted", func(t *testing.T) {
		clientTLS, err := LoadClientTLSConfigWithMTLS(
			security.ClientTLSConfig{CAFiles: []string{serverCert}},
			security.ClientMTLSConfig{},
		)
		require.NoError(t, err)
		assert.NoError(t, echoRoundTrip(addr, clientTLS))
	})

	t.Run("certified client admitted", func(t *testing.T) {
		clientTLS, err := LoadClientTLSConfigWithMTLS(
			security.ClientTLSConfig{CAFiles: []string{serverCert}},
			security.ClientMTLSConfig{
				Enabled:  true,
				CertFile: clientCert,
				KeyFile:  clientKey,
			},
		)
		require.NoError(t, err)
		assert.NoError(t, echoRoundTrip(addr, clientTLS))
	})
}
