// Command arrow-agent is the process entrypoint: it loads the agent's
// identity/service-table config, assembles the client TLS config, and
// runs the tunnel engine under a reconnect supervisor — auto-reconnect
// is kept out of the engine itself; the supervisor decides when to
// redial. Grounded on the teacher's run.go (flag-parsed config path,
// logger sync on exit), generalized from "one goroutine per configured
// listen rule" to "one supervised tunnel."
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/arrow-tunnel/arrow-agent/internal/config"
	"github.com/arrow-tunnel/arrow-agent/internal/engine"
	"github.com/arrow-tunnel/arrow-agent/internal/logging"
	"github.com/arrow-tunnel/arrow-agent/internal/reactor"
)

// noopCommandSender logs RESET_SVC_TABLE/SCAN_NETWORK requests; a real
// deployment wires this to whatever local service discovery process
// owns network scanning.
type noopCommandSender struct{ logger logging.Logger }

func (s noopCommandSender) Send(cmd engine.Command) error {
	s.logger.Info("command received", logging.String("command", cmd.String()))
	return nil
}

func main() {
	confPath := flag.String("config", "", "path to agent config file (default: $ARROW_AGENT_CONFIG or config/agent.json)")
	addr := flag.String("addr", "", "Arrow Service address (host:port); required")
	caFile := flag.String("ca", "", "path to PEM-encoded CA bundle trusted for the Arrow Service")
	certFile := flag.String("cert", "", "path to client certificate (PEM)")
	keyFile := flag.String("key", "", "path to client private key (PEM)")
	insecureSkipVerify := flag.Bool("insecure-skip-verify", false, "disable TLS server verification (testing only)")
	flag.Parse()

	store, err := config.Load(*confPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "arrow-agent: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: "info", Path: "arrow-agent.log"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "arrow-agent: logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tlsCfg, err := buildTLSConfig(*caFile, *certFile, *keyFile, *insecureSkipVerify)
	if err != nil {
		logger.Warn("tls config", logging.Err(err))
		os.Exit(1)
	}

	target := *addr
	if target == "" {
		fmt.Fprintln(os.Stderr, "arrow-agent: -addr is required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("arrow-agent starting", logging.String("target", target))
	if err := supervise(ctx, logger, store, target, tlsCfg); err != nil {
		logger.Warn("arrow-agent exiting with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("arrow-agent stopped")
}

// supervise owns the reconnect loop: on a RedirectTarget it dials the
// new address next attempt with a reset backoff; on any engine error
// it backs off exponentially before retrying the same address, grounded
// on the presence of cenkalti/backoff/v5 across the corpus.
func supervise(ctx context.Context, logger logging.Logger, store *config.FileStore, addr string, tlsCfg *tls.Config) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0

	current := addr
	for {
		if ctx.Err() != nil {
			return nil
		}

		e := engine.New(logger, store, noopCommandSender{logger: logger}, reactor.New())
		logger.Info("connecting to arrow service", logging.String("addr", current))
		redirect, err := e.Run(ctx, current, tlsCfg)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := b.NextBackOff()
			logger.Warn("tunnel terminated, retrying", logging.Err(err))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		b.Reset()
		if redirect != "" {
			logger.Info("redirected", logging.String("new_addr", redirect))
			current = redirect
		}
	}
}

func buildTLSConfig(caFile, certFile, keyFile string, insecureSkipVerify bool) (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: insecureSkipVerify}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from %s", caFile)
		}
		cfg.RootCAs = pool
	}

	if certFile != "" || keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert/key: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
