package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/ent0n29/gearhead/internal/chat"
	"github.com/ent0n29/gearhead/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		BindAddr:              ":0",
		ShutdownTimeout:       time.Second,
		MetricsNamespace:      fmt.Sprintf("test_app_%d", time.Now().UnixNano()),
		LogLevel:              "error",
		LogFormat:             "json",
		MemoryMaxMessages:     4,
		MemoryTimeout:         time.Minute,
		MemorySweepInterval:   time.Minute,
		MemoryShards:          2,
		BotPrefix:             "!",
		BotName:               "Gearhead",
		CompletionMode:        "mock",
		CompletionMaxTokens:   300,
		CompletionTemperature: 0.7,
		CompletionTimeout:     time.Second,
	}
}

func TestBuildWiresMockStack(t *testing.T) {
	res, err := Build(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer res.Cleanup()

	if res.Backend != "mock" {
		t.Fatalf("Backend = %q, want mock", res.Backend)
	}
	if res.Store.MaxMessages() != 4 {
		t.Fatalf("Store.MaxMessages() = %d, want 4", res.Store.MaxMessages())
	}

	for i := 0; i < 3; i++ {
		if _, err := res.Dispatcher.Handle(context.Background(), chat.Inbound{UserID: "u1", Text: fmt.Sprintf("q%d", i)}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}
	if got := len(res.Store.History("u1")); got != 4 {
		t.Fatalf("len(History()) = %d, want 4", got)
	}

	res.Store.ClearHistory("u1")
	if st := res.Store.Stats(); st.TotalUsers != 0 {
		t.Fatalf("Stats() = %+v, want empty after clear", st)
	}
}

func TestBuildRejectsOpenRouterWithoutKey(t *testing.T) {
	cfg := testConfig()
	cfg.CompletionMode = "openrouter"
	if _, err := Build(context.Background(), cfg); err == nil {
		t.Fatalf("Build() error = nil, want missing key error")
	}
}


func metricValue(t *testing.T, c prometheus.Metric) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Counter != nil:
		return m.Counter.GetValue()
	}
	t.Fatalf("metric has neither gauge nor counter value")
	return 0
}

func TestBuildEvictionsUpdateMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.MemoryTimeout = time.Millisecond
	res, err := Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer res.Cleanup()

	for i := 0; i < 3; i++ {
		if _, err := res.Dispatcher.Handle(context.Background(), chat.Inbound{UserID: fmt.Sprintf("u%d", i), Text: "hi"}); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}
	if got := metricValue(t, res.Metrics.TrackedUsers); got != 3 {
		t.Fatalf("TrackedUsers = %v, want 3", got)
	}

	time.Sleep(5 * time.Millisecond)
	if n := res.Store.Sweep(); n != 3 {
		t.Fatalf("Sweep() = %d, want 3", n)
	}
	if got := metricValue(t, res.Metrics.Evictions.WithLabelValues("sweep")); got != 3 {
		t.Fatalf("sweep evictions = %v, want 3", got)
	}
	if got := metricValue(t, res.Metrics.TrackedUsers); got != 0 {
		t.Fatalf("TrackedUsers = %v, want 0 after sweep", got)
	}
}
