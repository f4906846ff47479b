package health

import (
	"errors"
	"testing"
	"time"
)

func TestRegistry_SetStatus(t *testing.T) {
	reg := NewRegistry()

	if err := reg.SetStatus("db", LevelHealthy, "ok", nil); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	got, ok := reg.Status("db")
	if !ok {
		t.Fatal("Status() ok = false, want true")
	}
	if got.Status != LevelHealthy {
		t.Errorf("Status = %v, want healthy", got.Status)
	}
	if got.Message != "ok" {
		t.Errorf("Message = %q, want %q", got.Message, "ok")
	}
	if got.LastChecked.IsZero() {
		t.Error("LastChecked should be set")
	}
}

func TestRegistry_WhitespaceNameIsNonEmpty(t *testing.T) {
	reg := NewRegistry()

	if err := reg.SetStatus("  ", LevelWarning, "odd", nil); err != nil {
		t.Fatalf("SetStatus(\"  \") error = %v, want nil", err)
	}
	if got, ok := reg.Status("  "); !ok || got.Status != LevelWarning {
		t.Errorf("Status(\"  \") = %+v, %v", got, ok)
	}
}

func TestRegistry_SetStatusInvalid(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name      string
		component string
		level     Level
	}{
		{"empty name", "", LevelHealthy},
		{"bad level", "db", Level("degraded")},
		{"empty level", "db", Level("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.SetStatus(tt.component, tt.level, "", nil)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("SetStatus() error = %v, want ErrInvalidArgument", err)
			}

			var iae *InvalidArgumentError
			if !errors.As(err, &iae) {
				t.Fatalf("error should be *InvalidArgumentError, got %T", err)
			}
			if iae.Op != "SetStatus" || iae.Name != tt.component {
				t.Errorf("InvalidArgumentError = %+v", iae)
			}
		})
	}

	if reg.Len() != 0 {
		t.Errorf("invalid calls should not record anything, got %d entries", reg.Len())
	}
}

func TestRegistry_ErrorClearedOnNonErrorLevel(t *testing.T) {
	reg := NewRegistry()
	cause := errors.New("conn failed")

	_ = reg.SetStatus("db", LevelError, "down", cause)
	got, _ := reg.Status("db")
	if got.Err != cause {
		t.Fatalf("Err = %v, want %v", got.Err, cause)
	}

	_ = reg.SetStatus("db", LevelWarning, "recovering", cause)
	got, _ = reg.Status("db")
	if got.Err != nil {
		t.Errorf("Err = %v, want nil for warning", got.Err)
	}
}

func TestRegistry_LastCheckedUpdated(t *testing.T) {
	reg := NewRegistry()
	now := time.UnixMilli(1000)
	reg.now = func() time.Time { return now }

	_ = reg.ReportHealthy("cache", "")
	now = time.UnixMilli(2000)
	_ = reg.ReportHealthy("cache", "")

	got, _ := reg.Status("cache")
	if got.LastChecked.UnixMilli() != 2000 {
		t.Errorf("LastChecked = %d, want 2000", got.LastChecked.UnixMilli())
	}
}

func TestRegistry_Helpers(t *testing.T) {
	reg := NewRegistry()
	cause := errors.New("boom")

	_ = reg.InitializeLoading("a", "")
	_ = reg.InitializeLoading("b", "")
	_ = reg.MarkLoaded("a", "")
	_ = reg.MarkFailed("b", cause, "")
	_ = reg.ReportWarning("c", "slow")
	_ = reg.ReportError("d", cause, "")

	tests := []struct {
		name    string
		level   Level
		message string
	}{
		{"a", LevelHealthy, "Loaded successfully"},
		{"b", LevelError, "boom"},
		{"c", LevelWarning, "slow"},
		{"d", LevelError, "boom"},
	}

	for _, tt := range tests {
		got, ok := reg.Status(tt.name)
		if !ok {
			t.Fatalf("%s missing", tt.name)
		}
		if got.Status != tt.level || got.Message != tt.message {
			t.Errorf("%s = (%v, %q), want (%v, %q)", tt.name, got.Status, got.Message, tt.level, tt.message)
		}
	}

	_ = reg.InitializeLoading("e", "")
	if got, _ := reg.Status("e"); got.Message != "Initializing" {
		t.Errorf("InitializeLoading default message = %q", got.Message)
	}
}

func TestRegistry_AllStatusesOrder(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_ = reg.ReportHealthy(name, "")
	}
	_ = reg.ReportWarning("zeta", "again")

	all := reg.AllStatuses()
	want := []string{"zeta", "alpha", "mid"}
	if len(all) != len(want) {
		t.Fatalf("AllStatuses() len = %d, want %d", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("AllStatuses()[%d] = %s, want %s", i, all[i].Name, name)
		}
	}
	if all[0].Status != LevelWarning {
		t.Errorf("replaced entry should carry new status, got %v", all[0].Status)
	}
}

func TestRegistry_ComponentsByStatus(t *testing.T) {
	reg := NewRegistry()
	_ = reg.ReportHealthy("a", "")
	_ = reg.ReportWarning("b", "")
	_ = reg.ReportHealthy("c", "")

	healthy := reg.ComponentsByStatus(LevelHealthy)
	if len(healthy) != 2 || healthy[0].Name != "a" || healthy[1].Name != "c" {
		t.Errorf("ComponentsByStatus(healthy) = %+v", healthy)
	}
	if got := reg.ComponentsByStatus(LevelError); len(got) != 0 {
		t.Errorf("ComponentsByStatus(error) = %+v, want empty", got)
	}
}

func TestRegistry_StatusSummary(t *testing.T) {
	reg := NewRegistry()
	_ = reg.ReportError("db", errors.New("conn failed"), "")
	_ = reg.ReportHealthy("cache", "")

	got := reg.StatusSummary()
	want := map[Level]int{
		LevelHealthy: 1,
		LevelError:   1,
		LevelWarning: 0,
		LevelLoading: 0,
		LevelUnknown: 0,
	}
	if len(got) != len(want) {
		t.Fatalf("StatusSummary() has %d keys, want %d", len(got), len(want))
	}
	for level, n := range want {
		if got[level] != n {
			t.Errorf("StatusSummary()[%s] = %d, want %d", level, got[level], n)
		}
	}
}

func TestRegistry_Summaries(t *testing.T) {
	reg := NewRegistry()
	reg.now = func() time.Time { return time.UnixMilli(1234) }
	_ = reg.ReportError("db", errors.New("conn failed"), "down")

	sums := reg.Summaries(3)
	if len(sums) != 1 {
		t.Fatalf("Summaries() len = %d, want 1", len(sums))
	}
	s := sums[0].Summary
	if sums[0].Name != "db" || s.Status != LevelError || s.Error != "conn failed" ||
		s.LastChecked != 1234 || s.WorkerIndex != 3 || s.Message != "down" {
		t.Errorf("Summaries()[0] = %+v", sums[0])
	}
}

func TestRegistry_Reset(t *testing.T) {
	reg := NewRegistry()
	_ = reg.ReportHealthy("a", "")
	reg.Reset()

	if _, ok := reg.Status("a"); ok {
		t.Error("Status() after Reset should miss")
	}
	if len(reg.AllStatuses()) != 0 {
		t.Error("AllStatuses() after Reset should be empty")
	}
	if reg.StatusSummary()[LevelHealthy] != 0 {
		t.Error("StatusSummary() after Reset should be zero")
	}
}

func TestComponent_Handle(t *testing.T) {
	reg := NewRegistry()
	c := reg.Component("db.rest")

	if _, ok := reg.Status("db.rest"); ok {
		t.Fatal("Component() alone should not record a status")
	}

	steps := []struct {
		call func() error
		want Level
	}{
		{func() error { return c.Loading("starting") }, LevelLoading},
		{func() error { return c.Healthy("up") }, LevelHealthy},
		{func() error { return c.Warning("slow") }, LevelWarning},
		{func() error { return c.Error("down", errors.New("x")) }, LevelError},
		{func() error { return c.Unknown("") }, LevelUnknown},
	}
	for _, step := range steps {
		if err := step.call(); err != nil {
			t.Fatalf("handle call error = %v", err)
		}
		got, _ := reg.Status(c.Name())
		if got.Status != step.want {
			t.Errorf("status = %v, want %v", got.Status, step.want)
		}
	}

	if err := reg.Component("").Healthy(""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty handle name error = %v, want ErrInvalidArgument", err)
	}
}

func TestLevel_Priority(t *testing.T) {
	order := []Level{LevelHealthy, LevelUnknown, LevelLoading, LevelWarning, LevelError}
	for i := 1; i < len(order); i++ {
		if order[i].Priority() <= order[i-1].Priority() {
			t.Errorf("%s should outrank %s", order[i], order[i-1])
		}
	}
	if _, ok := ParseLevel("degraded"); ok {
		t.Error("ParseLevel(degraded) should fail")
	}
	if l, ok := ParseLevel("loading"); !ok || l != LevelLoading {
		t.Errorf("ParseLevel(loading) = %v, %v", l, ok)
	}
}
