package api

import (
	"crypto/tls"
	"fmt"

	"github.com/AaronLay10/SentientFX/internal/config"
)

// TLSConfig holds the certificate and key paths for the API listener.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// TLSFromEnv reads SENTIENT_TLS_CERT and SENTIENT_TLS_KEY, honouring the
// *_FILE convention. It returns nil when either is unset.
func TLSFromEnv() (*TLSConfig, error) {
	certFile, err := config.ResolveSecret("SENTIENT_TLS_CERT")
	if err != nil {
		return nil, err
	}
	keyFile, err := config.ResolveSecret("SENTIENT_TLS_KEY")
	if err != nil {
		return nil, err
	}
	if certFile == "" || keyFile == "" {
		return nil, nil
	}
	return &TLSConfig{CertFile: certFile, KeyFile: keyFile}, nil
}

// Enabled returns true if both paths are set. A nil config is disabled.
func (c *TLSConfig) Enabled() bool {
	return c != nil && c.CertFile != "" && c.KeyFile != ""
}

// Load reads the key pair into a tls.Config.
func (c *TLSConfig) Load() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("tls not configured")
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
