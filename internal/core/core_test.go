package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type runnable struct {
	id       ModuleID
	log      *[]string
	startErr error
}

func (r *runnable) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: r.id, New: func() Module { return r }}
}

func (r *runnable) Start() error {
	if r.startErr != nil {
		return r.startErr
	}
	*r.log = append(*r.log, "start "+string(r.id))
	return nil
}

func (r *runnable) Stop(context.Context) error {
	*r.log = append(*r.log, "stop "+string(r.id))
	return nil
}

func TestApp_StartStopOrder(t *testing.T) {
	var log []string
	app := NewApp(NewAppContext(nil))
	app.AppendModule("a.one", &runnable{id: "a.one", log: &log})
	app.AppendModule("a.two", &runnable{id: "a.two", log: &log})

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	app.Stop()

	want := []string{"start a.one", "start a.two", "stop a.two", "stop a.one"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, log[i], want[i])
		}
	}
}

func TestApp_StartFailureRollsBack(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	app := NewApp(NewAppContext(nil))
	app.AppendModule("a.one", &runnable{id: "a.one", log: &log})
	app.AppendModule("a.two", &runnable{id: "a.two", log: &log, startErr: boom})

	if err := app.Start(); !errors.Is(err, boom) {
		t.Fatalf("Start error = %v, want boom", err)
	}
	if len(log) != 2 || log[1] != "stop a.one" {
		t.Errorf("log = %v, want a.one started then stopped", log)
	}
}

func TestApp_RunReturnsOnCancel(t *testing.T) {
	var log []string
	app := NewApp(NewAppContext(nil))
	app.AppendModule("a.one", &runnable{id: "a.one", log: &log})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(log) != 2 {
		t.Errorf("log = %v, want start and stop", log)
	}
}

func TestApp_ModuleLookup(t *testing.T) {
	app := NewApp(NewAppContext(nil))
	mod := &runnable{id: "a.one"}
	app.AppendModule("a.one", mod)

	got, ok := app.Module("a.one")
	if !ok || got != mod {
		t.Errorf("Module(a.one) = %v, %v", got, ok)
	}
	if _, ok := app.Module("a.two"); ok {
		t.Error("unexpected module a.two")
	}
	if n := len(app.Modules()); n != 1 {
		t.Errorf("Modules() len = %d, want 1", n)
	}
}

func TestRegistry_NamespaceAndPanics(t *testing.T) {
	t.Cleanup(resetRegistry)

	RegisterModule(&runnable{id: "provider.b"})
	RegisterModule(&runnable{id: "provider.a"})
	RegisterModule(&runnable{id: "store.sqlite"})

	got := GetModulesByNamespace("provider")
	if len(got) != 2 || got[0].ID != "provider.a" || got[1].ID != "provider.b" {
		t.Errorf("GetModulesByNamespace = %v", got)
	}
	if n := len(GetModules()); n != 3 {
		t.Errorf("GetModules len = %d, want 3", n)
	}

	defer func() {
		if recover() == nil {
			t.Error("duplicate registration should panic")
		}
	}()
	RegisterModule(&runnable{id: "store.sqlite"})
}

func TestModuleID_Parts(t *testing.T) {
	id := ModuleID("provider.openai_compatible")
	if id.Namespace() != "provider" || id.Name() != "openai_compatible" {
		t.Errorf("parts = %q / %q", id.Namespace(), id.Name())
	}
	if ModuleID("solo").Name() != "solo" {
		t.Error("Name of undotted ID should be the ID")
	}
}

type stopOnly struct {
	stopped *bool
}

func (s *stopOnly) ModuleInfo() ModuleInfo     { return ModuleInfo{ID: "store.stoponly"} }
func (s *stopOnly) Stop(context.Context) error { *s.stopped = true; return nil }

func TestApp_StopsModulesWithoutStart(t *testing.T) {
	var stopped bool
	app := NewApp(NewAppContext(nil))
	app.AppendModule("store.stoponly", &stopOnly{stopped: &stopped})

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	app.Stop()

	if !stopped {
		t.Error("Stop was not called on a module without Start")
	}
}
