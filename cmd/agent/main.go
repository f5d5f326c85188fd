package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // current_time resolves IANA zones without system tzdata

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/petasbytes/relay-agent/internal/agent"
	"github.com/petasbytes/relay-agent/internal/config"
	"github.com/petasbytes/relay-agent/internal/metrics"
	"github.com/petasbytes/relay-agent/internal/provider"
	"github.com/petasbytes/relay-agent/memory"
	"github.com/petasbytes/relay-agent/tools"
)

func main() {
	fs := pflag.NewFlagSet("agent", pflag.ExitOnError)
	config.RegisterFlags(fs)
	convKey := fs.String("conversation", "default", "conversation to continue")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	// Basic env check (SDK also reads API key)
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		fmt.Println("Missing ANTHROPIC_API_KEY; export it before running.")
		os.Exit(1)
	}

	opts, err := agent.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	local, err := tools.NewRegistry(tools.Builtins()...)
	if err != nil {
		log.Fatalf("local tools: %v", err)
	}
	model := provider.NewAnthropic(provider.NewAnthropicClient(), anthropic.Model(cfg.Model), int64(cfg.MaxTokens))
	svc := agent.New(memory.NewFileStore(cfg.StorePath), model, local, opts)

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	// Set up graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Println("\nExiting...")
		cancel()
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("Chat with Claude (conversation %q, Ctrl-C to quit)\n", *convKey)
	if opts.Endpoint == "" {
		log.Infof("no tool provider configured; local tools only")
	}

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		close(inputCh)
	}()

outer:
	for {
		fmt.Print("\u001b[94mYou\u001b[0m: ")
		var (
			user string
			ok   bool
		)
		select {
		case <-ctx.Done():
			break outer
		case user, ok = <-inputCh:
			if !ok {
				break outer
			}
		}
		if user == "" {
			continue
		}

		res, err := svc.Reply(ctx, *convKey, user)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break outer
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("\u001b[93mClaude\u001b[0m: %s\n", res.Text)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: stdin read error: %v\n", err)
	}
}

func setupLogging(level string) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&prefixed.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func serveMetrics(addr string) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		log.Fatalf("metrics: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics: %v", err)
		}
	}()
	log.Infof("serving metrics on %s/metrics", addr)
	return srv
}
