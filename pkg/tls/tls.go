package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
	"go.uber.org/zap"
)

type TLSConfig struct {
	Enabled    bool   `envconfig:"TLS_ENABLED" default:"false"`
	SocketPath string `envconfig:"SPIRE_SOCKET_PATH" default:"unix:///run/spire/sockets/agent.sock"`
	// TrustDomain restricts callers to one SPIFFE trust domain; empty accepts any.
	TrustDomain   string        `envconfig:"SPIFFE_TRUST_DOMAIN"`
	WatchInterval time.Duration `envconfig:"TLS_WATCH_INTERVAL" default:"30s"`
}

func LoadTLSConfig() (*TLSConfig, error) {
	var cfg TLSConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Source keeps the SPIRE X509 source alive for the lifetime of the server.
type Source struct {
	x509   *workloadapi.X509Source
	logger *zap.Logger
}

// NewServerTLS returns the mTLS server config, or nil config and nil source
// when TLS is disabled.
func NewServerTLS(ctx context.Context, cfg *TLSConfig, logger *zap.Logger) (*tls.Config, *Source, error) {
	if !cfg.Enabled {
		logger.Info("TLS is disabled")
		return nil, nil, nil
	}

	// SPIRE Workload API를 통해 X509 소스 생성
	source, err := workloadapi.NewX509Source(ctx,
		workloadapi.WithClientOptions(workloadapi.WithAddr(cfg.SocketPath)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create X509Source: %w", err)
	}

	authorizer := tlsconfig.AuthorizeAny()
	if cfg.TrustDomain != "" {
		td, err := spiffeid.TrustDomainFromString(cfg.TrustDomain)
		if err != nil {
			_ = source.Close()
			return nil, nil, fmt.Errorf("invalid SPIFFE_TRUST_DOMAIN: %w", err)
		}
		authorizer = tlsconfig.AuthorizeMemberOf(td)
	}

	tlsConfig := tlsconfig.MTLSServerConfig(source, source, authorizer)
	tlsConfig.MinVersion = tls.VersionTLS12

	logger.Info("SPIRE TLS configuration loaded",
		zap.String("socket_path", cfg.SocketPath),
		zap.String("trust_domain", cfg.TrustDomain))

	return tlsConfig, &Source{x509: source, logger: logger}, nil
}

// Watch logs the current SVID on every tick until ctx is done. SPIRE rotates
// certificates on its own; this only reports their state.
func (s *Source) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svid, err := s.x509.GetX509SVID()
			if err != nil {
				s.logger.Error("Failed to get X509 SVID", zap.Error(err))
				continue
			}
			s.logger.Info("Certificate status",
				zap.String("spiffe_id", svid.ID.String()),
				zap.Time("expiry", svid.Certificates[0].NotAfter),
				zap.Duration("ttl", time.Until(svid.Certificates[0].NotAfter)))
		}
	}
}

func (s *Source) Close() error {
	if s == nil || s.x509 == nil {
		return nil
	}
	return s.x509.Close()
}
