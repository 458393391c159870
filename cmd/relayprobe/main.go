// Command relayprobe checks every configured endpoint once and prints its
// health and current title.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/zachfi/streamkeeper/app"
	"github.com/zachfi/streamkeeper/modules/metadata"
	"github.com/zachfi/streamkeeper/pkg/registry"
)

type result struct {
	endpoint registry.Endpoint
	healthy  bool
	title    string
	latency  time.Duration
}

func main() {
	var (
		configFile string
		timeout    time.Duration
		verbose    bool
	)
	flag.StringVar(&configFile, "config.file", "", "Configuration file to load.")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "Overall probe timeout.")
	flag.BoolVar(&verbose, "v", false, "Log probe details to stderr.")
	flag.Parse()

	if configFile == "" {
		fmt.Fprintln(os.Stderr, "relayprobe: -config.file is required")
		os.Exit(2)
	}

	var out io.Writer = io.Discard
	if verbose {
		out = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg, err := app.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayprobe: %v\n", err)
		os.Exit(1)
	}

	reg, err := registry.New(cfg.Registry.Endpoints)
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayprobe: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	results := probeAll(ctx, reg, cfg.Metadata, logger)
	cancel()
	fmt.Println(renderResults(results, shouldColorize(os.Stdout)))

	for _, r := range results {
		if !r.healthy {
			os.Exit(1)
		}
	}
}

func probeAll(ctx context.Context, reg *registry.Registry, cfg metadata.Config, logger *slog.Logger) []result {
	client := &http.Client{}
	prober := metadata.NewProber(cfg, client)
	lookup := metadata.NewLookup(cfg, client, logger)

	eps := reg.All()
	results := make([]result, len(eps))

	var wg sync.WaitGroup
	for i, ep := range eps {
		wg.Add(1)
		go func(i int, ep registry.Endpoint) {
			defer wg.Done()

			start := time.Now()
			healthy := prober.Probe(ctx, ep)
			latency := time.Since(start)

			results[i] = result{
				endpoint: ep,
				healthy:  healthy,
				title:    lookup.NowPlaying(ctx, ep).Display(),
				latency:  latency,
			}
		}(i, ep)
	}
	wg.Wait()

	return results
}
