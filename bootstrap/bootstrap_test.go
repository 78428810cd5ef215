package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/kbukum/photoflow/component"
	"github.com/kbukum/photoflow/config"
	"github.com/kbukum/photoflow/errors"
	"github.com/kbukum/photoflow/logger"
	"github.com/kbukum/photoflow/stage"
)

// testConfig is a minimal config for testing that satisfies the Config interface.
type testConfig struct {
	config.ServiceConfig
}

// mockComponent implements component.Component for testing.
type mockComponent struct {
	mu       sync.Mutex
	name     string
	startErr error
	stopErr  error
	health   component.Health
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return m.stopErr
}
func (m *mockComponent) Health(ctx context.Context) component.Health {
	return m.health
}

func healthy(name string) *mockComponent {
	return &mockComponent{name: name, health: component.Health{Name: name, Status: component.StatusHealthy}}
}

type describedComponent struct {
	*mockComponent
	desc component.Description
}

func (d *describedComponent) Describe() component.Description { return d.desc }

func newTestConfig(name, version string) *testConfig {
	return &testConfig{
		ServiceConfig: config.ServiceConfig{
			Name:        name,
			Version:     version,
			Environment: "development",
		},
	}
}

func newTestApp(t *testing.T, opts ...Option) (*App[*testConfig], *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{WithLogger(logger.NewNop()), WithOutput(&out)}, opts...)
	app, err := NewApp(newTestConfig("test-svc", "1.0.0"), opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	app.notify = func(chan<- os.Signal, ...os.Signal) {}
	app.stopNotify = func(chan<- os.Signal) {}
	return app, &out
}

func noopTask(context.Context, <-chan struct{}) error { return nil }

func TestNewApp(t *testing.T) {
	app, _ := newTestApp(t)
	if app.Name != "test-svc" {
		t.Errorf("expected name 'test-svc', got %q", app.Name)
	}
	if app.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", app.Version)
	}
	if app.Components == nil || app.Logger == nil || app.Summary == nil {
		t.Error("expected registry, logger and summary")
	}
	if app.Cfg.Name != "test-svc" {
		t.Errorf("expected cfg.Name 'test-svc', got %q", app.Cfg.Name)
	}
}

func TestNewAppDefaults(t *testing.T) {
	app, err := NewApp(&testConfig{}, WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	if app.Name != "photoflow" || app.Version != "dev" {
		t.Errorf("defaults not applied: %q %q", app.Name, app.Version)
	}
}

func TestNewAppValidation(t *testing.T) {
	cfg := newTestConfig("svc", "1")
	cfg.Environment = "moon"
	_, err := NewApp(cfg, WithLogger(logger.NewNop()))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.IsConfig(err) {
		t.Errorf("expected config fault, got %v", err)
	}
	if errors.ExitCode(err) != errors.ExitConfig {
		t.Errorf("exit code = %d", errors.ExitCode(err))
	}
}

func TestWithGracefulTimeout(t *testing.T) {
	app, _ := newTestApp(t, WithGracefulTimeout(3*time.Second))
	if app.gracefulTimeout != 3*time.Second {
		t.Errorf("gracefulTimeout = %v", app.gracefulTimeout)
	}
	def, _ := newTestApp(t)
	if def.gracefulTimeout != 15*time.Second {
		t.Errorf("default gracefulTimeout = %v", def.gracefulTimeout)
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app, _ := newTestApp(t)
	if err := app.RegisterComponent(healthy("a")); err != nil {
		t.Fatal(err)
	}
	if err := app.RegisterComponent(healthy("a")); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestHookOrder(t *testing.T) {
	app, _ := newTestApp(t)
	var order []string
	app.OnStart(func(context.Context) error { order = append(order, "start"); return nil })
	app.OnConfigure(func(context.Context, *App[*testConfig]) error { order = append(order, "configure"); return nil })
	app.OnReady(func(context.Context) error { order = append(order, "ready"); return nil })
	app.OnStop(func(context.Context) error { order = append(order, "stop"); return nil })

	err := app.RunTask(context.Background(), func(context.Context, <-chan struct{}) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "start,configure,ready,task,stop"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestRunHooksStopsAtFirstError(t *testing.T) {
	calls := 0
	err := runHooks(context.Background(), []Hook{
		func(context.Context) error { calls++; return fmt.Errorf("boom") },
		func(context.Context) error { calls++; return nil },
	})
	if err == nil || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  component.HealthStatus
		wantErr bool
	}{
		{"healthy", component.StatusHealthy, false},
		{"degraded", component.StatusDegraded, true},
		{"unhealthy", component.StatusUnhealthy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t)
			_ = app.RegisterComponent(&mockComponent{name: "storage", health: component.Health{Name: "storage", Status: tt.status}})
			err := app.ReadyCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsSystemic(err) {
				t.Errorf("expected systemic fault, got %v", err)
			}
		})
	}
}

func TestRunTaskPreflightFailureSkipsTask(t *testing.T) {
	app, _ := newTestApp(t)
	c := &mockComponent{name: "storage", health: component.Health{Name: "storage", Status: component.StatusUnhealthy, Message: "bucket missing"}}
	_ = app.RegisterComponent(c)

	ran := false
	err := app.RunTask(context.Background(), func(context.Context, <-chan struct{}) error {
		ran = true
		return nil
	})
	if ran {
		t.Error("task must not run when preflight fails")
	}
	if errors.ExitCode(err) != errors.ExitSystemic {
		t.Errorf("exit code = %d (%v)", errors.ExitCode(err), err)
	}
	if !c.stopped {
		t.Error("components must be stopped after a failed startup")
	}
}

func TestRunTaskComponentStartError(t *testing.T) {
	app, _ := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "storage", startErr: fmt.Errorf("refused")})
	err := app.RunTask(context.Background(), noopTask)
	if !errors.IsSystemic(err) {
		t.Errorf("expected systemic fault, got %v", err)
	}
}

func TestRunTaskConfigureErrorKeepsClass(t *testing.T) {
	app, _ := newTestApp(t)
	app.OnConfigure(func(context.Context, *App[*testConfig]) error {
		return errors.UnknownStage("sepia")
	})
	err := app.RunTask(context.Background(), noopTask)
	if !errors.IsConfig(err) {
		t.Errorf("expected config fault, got %v", err)
	}
}

func TestRunTaskError(t *testing.T) {
	app, _ := newTestApp(t)
	c := healthy("storage")
	_ = app.RegisterComponent(c)
	want := fmt.Errorf("task failed")
	err := app.RunTask(context.Background(), func(context.Context, <-chan struct{}) error { return want })
	if err != want {
		t.Errorf("err = %v, want %v", err, want)
	}
	if !c.started || !c.stopped {
		t.Error("component lifecycle incomplete")
	}
}

func TestRunTaskStopError(t *testing.T) {
	app, _ := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{
		name: "storage", stopErr: fmt.Errorf("flush failed"),
		health: component.Health{Name: "storage", Status: component.StatusHealthy},
	})
	err := app.RunTask(context.Background(), noopTask)
	if !errors.IsSystemic(err) {
		t.Errorf("expected systemic shutdown fault, got %v", err)
	}
}

func TestRunTaskSignals(t *testing.T) {
	app, _ := newTestApp(t)
	var sigCh chan<- os.Signal
	app.notify = func(c chan<- os.Signal, _ ...os.Signal) { sigCh = c }

	stopped := make(chan struct{})
	err := app.RunTask(context.Background(), func(ctx context.Context, stop <-chan struct{}) error {
		sigCh <- syscall.SIGINT
		select {
		case <-stop:
			close(stopped)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("stop was not closed")
		}
		if ctx.Err() != nil {
			return fmt.Errorf("first signal must not cancel the context")
		}
		sigCh <- syscall.SIGTERM
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return fmt.Errorf("context was not canceled")
		}
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	select {
	case <-stopped:
	default:
		t.Error("stop channel never closed")
	}
}

func TestRunTaskParentCancellation(t *testing.T) {
	app, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	err := app.RunTask(ctx, func(ctx context.Context, _ <-chan struct{}) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})
	if err != context.Canceled {
		t.Errorf("err = %v", err)
	}
}

func TestRunTaskPrintsSummary(t *testing.T) {
	app, out := newTestApp(t)
	_ = app.RegisterComponent(&describedComponent{
		mockComponent: healthy("storage"),
		desc:          component.Description{Name: "Storage", Type: "storage", Details: "provider=memory"},
	})
	err := app.RunTask(context.Background(), func(context.Context, <-chan struct{}) error {
		app.Summary.SetRunID("run-1")
		app.Summary.SetCounts(stage.Summary{Processed: 3, Written: 2, Filtered: 1})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	text := out.String()
	for _, want := range []string{"test-svc v1.0.0 run run-1", "Storage [storage]: provider=memory", "processed 3", "written   2", "Completed without faults"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestShutdown(t *testing.T) {
	app, _ := newTestApp(t)
	c := healthy("storage")
	_ = app.RegisterComponent(c)
	_ = app.Components.StartAll(context.Background())
	if err := app.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !c.stopped {
		t.Error("expected component to be stopped")
	}
}

func TestSummaryFaultsCapped(t *testing.T) {
	s := NewSummary("svc", "1")
	s.SetMaxFaults(2)
	faults := make([]errors.FaultRecord, 5)
	for i := range faults {
		faults[i] = errors.FaultRecord{Source: fmt.Sprintf("p%d.jpg", i), Stage: "date", Code: errors.ErrCodeMetadata, Message: "no date"}
	}
	s.SetCounts(stage.Summary{Processed: 5, Failed: 5, Faults: faults})

	var buf bytes.Buffer
	s.Write(&buf)
	text := buf.String()
	if !strings.Contains(text, "p0.jpg") || !strings.Contains(text, "p1.jpg") {
		t.Errorf("expected first faults listed:\n%s", text)
	}
	if strings.Contains(text, "p2.jpg") {
		t.Errorf("fault list not capped:\n%s", text)
	}
	if !strings.Contains(text, "... and 3 more") {
		t.Errorf("missing remainder line:\n%s", text)
	}
	if !strings.Contains(text, "Completed with 5 faults") {
		t.Errorf("missing footer:\n%s", text)
	}
}

func TestSummaryExternalDecoderNote(t *testing.T) {
	const note = "HEIC/HEIF photos need an external decoder"
	tests := []struct {
		name  string
		fault errors.FaultRecord
		noted bool
	}{
		{"heic decode fault", errors.FaultRecord{Source: "2024/IMG_0001.HEIC", Stage: "output", Code: errors.ErrCodeDecode, Message: "unknown format"}, true},
		{"heif decode fault", errors.FaultRecord{Source: "b.heif", Stage: "output", Code: errors.ErrCodeDecode, Message: "unknown format"}, true},
		{"jpeg decode fault", errors.FaultRecord{Source: "a.jpg", Stage: "output", Code: errors.ErrCodeDecode, Message: "truncated"}, false},
		{"heic metadata fault", errors.FaultRecord{Source: "c.heic", Stage: "date", Code: errors.ErrCodeMetadata, Message: "no date"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummary("svc", "1")
			s.SetCounts(stage.Summary{Processed: 1, Failed: 1, Faults: []errors.FaultRecord{tt.fault}})
			var buf bytes.Buffer
			s.Write(&buf)
			if got := strings.Contains(buf.String(), note); got != tt.noted {
				t.Errorf("note shown = %v, want %v:\n%s", got, tt.noted, buf.String())
			}
		})
	}
}

func TestSummaryWithoutResults(t *testing.T) {
	var buf bytes.Buffer
	NewSummary("svc", "1").Write(&buf)
	if !strings.Contains(buf.String(), "No run results") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}

func TestTreePrefix(t *testing.T) {
	if treePrefix(0, 2) != "├──" || treePrefix(1, 2) != "└──" {
		t.Error("unexpected tree prefixes")
	}
}

func TestHealthStatusIcon(t *testing.T) {
	tests := map[component.HealthStatus]string{
		component.StatusHealthy:   "✅",
		component.StatusDegraded:  "⚠️",
		component.StatusUnhealthy: "❌",
		"other":                   "❓",
	}
	for status, want := range tests {
		if got := healthStatusIcon(status); got != want {
			t.Errorf("healthStatusIcon(%s) = %s, want %s", status, got, want)
		}
	}
}
