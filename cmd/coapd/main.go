// Command coapd runs a standalone CoAP endpoint: it binds a UDP socket,
// serves .well-known/core discovery plus a small demo resource, and logs
// every dispatch decision. It exists to exercise pkg/endpoint end to end;
// production users are expected to embed the package directly.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/endpoint"
)

var (
	// Set by -ldflags at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type config struct {
	showVersion bool
	listenAddr  string
	metricsAddr string
	name        string
	verbose     bool
}

func loadConfig() config {
	var cfg config
	flag.BoolVar(&cfg.showVersion, "version", false, "show version and exit")
	flag.StringVar(&cfg.listenAddr, "listen", ":5683", "UDP address to listen on")
	flag.StringVar(&cfg.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	flag.StringVar(&cfg.name, "name", "coapd", "endpoint name, used as the metrics label and in logs")
	flag.BoolVar(&cfg.verbose, "verbose", false, "enable debug logging")
	flag.Parse()
	return cfg
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}

func run() error {
	cfg := loadConfig()

	if cfg.showVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := newLogger(cfg.verbose)
	slog.SetDefault(log)

	var metrics *endpoint.Metrics
	if cfg.metricsAddr != "" {
		metrics = endpoint.NewMetrics(cfg.name)
		listener, err := net.Listen("tcp", cfg.metricsAddr)
		if err != nil {
			return fmt.Errorf("coapd: metrics listen: %w", err)
		}
		go func() {
			log.Info("serving metrics", "address", listener.Addr())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	registry := coap.NewRegistry()
	registerTimeResource(registry)

	ep, err := bindEndpoint(ctx, log, endpoint.Config{
		Logger:     log,
		ListenAddr: cfg.listenAddr,
		Registry:   registry,
		Metrics:    metrics,
		Name:       cfg.name,
		ResponseHandler: func(remote coap.Address, sent, rcvd *coap.PDU, tid coap.TID) {
			log.Debug("response", "peer", remote, "tid", tid, "code", rcvd.Code, "matched", sent != nil)
		},
	})
	if err != nil {
		return fmt.Errorf("coapd: %w", err)
	}
	defer ep.Close()

	log.Info("listening", "address", ep.LocalAddr())
	return ep.Run(ctx)
}

// bindEndpoint retries endpoint.New with exponential back-off, for the
// window right after a restart where the previous process's socket may not
// have been released yet (EADDRINUSE). This is not part of the CoAP engine
// itself — only the one-time bind at startup, never message retransmission,
// which always follows the fixed RFC 7252 back-off in pkg/endpoint.
func bindEndpoint(ctx context.Context, log *slog.Logger, cfg endpoint.Config) (*endpoint.Endpoint, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	var ep *endpoint.Endpoint
	for {
		var err error
		ep, err = endpoint.New(ctx, cfg)
		if err == nil {
			return ep, nil
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, err
		}
		log.Warn("bind failed, retrying", "error", err, "in", wait)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// registerTimeResource installs a read-only GET /time resource that answers
// with the current RFC 3339 timestamp, the smallest possible demonstration
// of a registered method handler (spec.md §4.H).
func registerTimeResource(registry *coap.Registry) {
	res := &coap.Resource{
		Path:          "time",
		ResourceType:  "core.time",
		ContentFormat: coap.MediaTypeTextPlain,
	}
	res.Handle(coap.MethodGet, func(ctx any, r *coap.Resource, remote coap.Address, req *coap.PDU, tid coap.TID) {
		e, ok := ctx.(*endpoint.Endpoint)
		if !ok {
			return
		}
		resp := coap.NewPDU(coap.TypeAcknowledgement, coap.Content, req.MID)
		if tok := req.Token(); tok != nil {
			resp.Options = append(resp.Options, coap.Option{Number: coap.OptionToken, Value: tok})
		}
		resp.Payload = []byte(time.Now().UTC().Format(time.RFC3339))
		e.Send(remote, resp)
	})
	registry.Register(res)
}
