// Command coap-client sends a single confirmable GET to a remote CoAP
// endpoint and prints the matched response, exercising pkg/endpoint's
// SendConfirmed/dispatch path end to end (spec.md §8's scenario 1).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/endpoint"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	remoteAddr := flag.String("remote-addr", "", "remote CoAP endpoint (host:port)")
	path := flag.String("path", ".well-known/core", "request URI path")
	timeout := flag.Duration("timeout", 5*time.Second, "request timeout")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	if *remoteAddr == "" {
		return fmt.Errorf("-remote-addr is required")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	host, portStr, err := net.SplitHostPort(*remoteAddr)
	if err != nil {
		return fmt.Errorf("invalid -remote-addr %q: %w", *remoteAddr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	dst := coap.NewAddress(&net.UDPAddr{IP: ips[0], Port: int(port)})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	type result struct {
		sent, rcvd *coap.PDU
	}
	respCh := make(chan result, 1)

	ep, err := endpoint.New(ctx, endpoint.Config{
		Logger:     log,
		ListenAddr: ":0",
		ResponseHandler: func(remote coap.Address, sent, rcvd *coap.PDU, tid coap.TID) {
			select {
			case respCh <- result{sent, rcvd}:
			default:
			}
		},
	})
	if err != nil {
		return fmt.Errorf("create endpoint: %w", err)
	}
	defer ep.Close()

	req := coap.NewPDU(coap.TypeConfirmable, coap.MethodGet, uint16(rand.Intn(1<<16)))
	token := make([]byte, 2)
	_, _ = rand.Read(token)
	req.Options = append(req.Options, coap.Option{Number: coap.OptionToken, Value: token})
	for _, seg := range strings.Split(strings.Trim(*path, "/"), "/") {
		if seg == "" {
			continue
		}
		req.Options = append(req.Options, coap.Option{Number: coap.OptionURIPath, Value: []byte(seg)})
	}

	reqCtx, reqCancel := context.WithTimeout(ctx, *timeout)
	defer reqCancel()

	runDone := make(chan error, 1)
	go func() { runDone <- ep.Run(reqCtx) }()

	ep.SendConfirmed(dst, req)

	select {
	case r := <-respCh:
		fmt.Printf("%s %s\n", r.rcvd.Code, r.rcvd.Payload)
	case <-reqCtx.Done():
		reqCancel()
		<-runDone
		return fmt.Errorf("timed out waiting for response from %s", *remoteAddr)
	}

	reqCancel()
	<-runDone
	return nil
}
