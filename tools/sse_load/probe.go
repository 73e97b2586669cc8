package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

type stats struct {
	connected   atomic.Int64
	connectErrs atomic.Int64
	streamErrs  atomic.Int64
	events      atomic.Int64
	reports     atomic.Int64
	logs        atomic.Int64
	trades      atomic.Int64
}

func (s *stats) fields() []zap.Field {
	return []zap.Field{
		zap.Int64("connected", s.connected.Load()),
		zap.Int64("connect_errs", s.connectErrs.Load()),
		zap.Int64("stream_errs", s.streamErrs.Load()),
		zap.Int64("events", s.events.Load()),
		zap.Int64("reports", s.reports.Load()),
		zap.Int64("logs", s.logs.Load()),
		zap.Int64("trades", s.trades.Load()),
	}
}

func errInvalidConns(n int) error {
	return fmt.Errorf("invalid conns: %d", n)
}

func subscribe(ctx context.Context, client *http.Client, url string, st *stats) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		st.connectErrs.Add(1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		st.connectErrs.Add(1)
		return
	}

	st.connected.Add(1)
	if err := consume(resp.Body, st); err != nil && ctx.Err() == nil {
		st.streamErrs.Add(1)
	}
}

// consume counts events until the stream ends. Heartbeat comments are ignored.
func consume(r io.Reader, st *stats) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		name, ok := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "event: ")
		if !ok {
			continue
		}
		st.events.Add(1)
		switch name {
		case "report":
			st.reports.Add(1)
		case "log":
			st.logs.Add(1)
		case "trade":
			st.trades.Add(1)
		}
	}
}
