package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whatsminer-go/whatsminer/pkg/connection"
)

// watch polls every target until ctx is done, printing availability
// changes and a one-line summary per successful probe.
func (r *runner) watch(ctx context.Context, w io.Writer, args []string) error {
	interval := r.pollInterval
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: watch [interval]", ErrUsage)
		}
		interval = d
	}

	var mu sync.Mutex
	printf := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, time.Now().Format("15:04:05")+" "+format+"\n", a...)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range r.targets {
		mon := connection.NewMonitor(t.miner, connection.MonitorConfig{
			Address:        t.client.Address(),
			Interval:       interval,
			ProbeTimeout:   r.timeout,
			Backoff:        connection.BackoffConfig{Jitter: connection.JitterFactor},
			Logger:         r.logger,
			ProtocolLogger: r.protoLogger,
		})
		mon.OnStateChange(func(oldState, newState connection.State) {
			if newState == connection.StateClosed {
				return
			}
			printf("%s: %s -> %s", t.name, oldState, newState)
		})
		mon.OnProbe(func(res connection.ProbeResult) {
			if res.State != connection.StateOnline {
				if res.Err != nil {
					printf("%s: probe failed: %v (retry in %s)", t.name, describeError(res.Err), res.Next.Round(time.Second))
				}
				return
			}
			s, err := t.miner.Summary(gctx)
			if err != nil {
				printf("%s: summary: %v", t.name, describeError(err))
				return
			}
			printf("%s: %.2f TH/s %.0f W %.1f °C", t.name, s.HashrateAvg/1e6, s.Power, s.Temperature)
		})

		g.Go(func() error {
			mon.Run(gctx)
			mon.Close()
			return nil
		})
	}
	return g.Wait()
}
