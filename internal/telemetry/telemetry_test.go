package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
)

type fixedCounter struct{ total, open int64 }

func (f fixedCounter) Count() int64     { return f.total }
func (f fixedCounter) OpenCount() int64 { return f.open }

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"), fixedCounter{total: 3, open: 1})
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if m.RequestCounter == nil || m.TaskMutations == nil || m.FragmentsParsed == nil || m.ImportedTasks == nil {
		t.Fatalf("expected every instrument to be created")
	}

	m.RecordMutation(context.Background(), "create")
	m.RecordFragment(context.Background(), true, "high")
}

func TestSetupDisabledLogsLocally(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(context.Background(), false, "tasklist", "", "test", &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	p.Logger.Info("hello")

	if !strings.Contains(buf.String(), `"service":"tasklist"`) || !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("unexpected log output: %s", buf.String())
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
