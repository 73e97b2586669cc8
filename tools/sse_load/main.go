// Command sse_load opens many subscribers on the report or trade stream and
// counts the events they receive.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	url         string
	connections int
	duration    time.Duration
	rampUp      time.Duration
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:   "sse_load",
		Short: "Load test the gridsim event streams",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, opts, logger)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:8080/api/reports/stream", "SSE endpoint URL")
	cmd.Flags().IntVar(&opts.connections, "conns", 1000, "number of concurrent subscribers")
	cmd.Flags().DurationVar(&opts.duration, "dur", 60*time.Second, "test duration (0 runs until interrupted)")
	cmd.Flags().DurationVar(&opts.rampUp, "ramp", 0, "spread connection starts across this window")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *zap.Logger) error {
	if opts.connections <= 0 {
		return errInvalidConns(opts.connections)
	}
	if opts.rampUp == 0 && opts.connections > 100 {
		// 1s per 500 subscribers
		opts.rampUp = max(time.Duration(opts.connections/500)*time.Second, time.Second)
		logger.Info("using default ramp-up", zap.Duration("ramp", opts.rampUp))
	}
	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	logger.Info("starting SSE load",
		zap.String("url", opts.url),
		zap.Int("conns", opts.connections),
		zap.Duration("duration", opts.duration),
		zap.Duration("ramp", opts.rampUp))

	client := &http.Client{
		Transport: &http.Transport{
			MaxConnsPerHost:     opts.connections + 100,
			MaxIdleConns:        opts.connections + 100,
			MaxIdleConnsPerHost: opts.connections + 100,
			DisableCompression:  true,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	st := &stats{}
	start := time.Now()

	var interval time.Duration
	if opts.rampUp > 0 {
		interval = opts.rampUp / time.Duration(opts.connections)
	}

	var wg sync.WaitGroup
	for i := 0; i < opts.connections && ctx.Err() == nil; i++ {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			subscribe(ctx, client, opts.url, st)
		}()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logger.Info("status", append(st.fields(), zap.Duration("elapsed", time.Since(start).Truncate(time.Second)))...)
			}
		}
	}()

	wg.Wait()

	elapsed := max(time.Since(start), time.Millisecond)
	logger.Info("done", append(st.fields(),
		zap.Duration("elapsed", elapsed.Truncate(time.Millisecond)),
		zap.Float64("events_per_sec", float64(st.events.Load())/elapsed.Seconds()))...)
	return nil
}
