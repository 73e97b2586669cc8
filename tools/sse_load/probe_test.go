package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeCountsEventsByName(t *testing.T) {
	stream := strings.Join([]string{
		": heartbeat",
		"event: log",
		`data: {"text":"started"}`,
		"",
		"event: report",
		`data: {"instrument":"BTC_USDT"}`,
		"",
		"event: trade",
		"data: {}",
		"",
		"event: report",
		"data: {}",
		"",
	}, "\n")

	st := &stats{}
	require.NoError(t, consume(strings.NewReader(stream), st))

	assert.EqualValues(t, 4, st.events.Load())
	assert.EqualValues(t, 2, st.reports.Load())
	assert.EqualValues(t, 1, st.logs.Load())
	assert.EqualValues(t, 1, st.trades.Load())
}

func TestSubscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: report\ndata: {}\n\n")
	}))
	defer srv.Close()

	st := &stats{}
	subscribe(context.Background(), srv.Client(), srv.URL, st)

	assert.EqualValues(t, 1, st.connected.Load())
	assert.EqualValues(t, 1, st.reports.Load())
	assert.Zero(t, st.streamErrs.Load())
}

func TestSubscribeRejectsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	st := &stats{}
	subscribe(context.Background(), srv.Client(), srv.URL, st)

	assert.EqualValues(t, 1, st.connectErrs.Load())
	assert.Zero(t, st.connected.Load())
}
