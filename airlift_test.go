package airlift

import (
	"context"
	"errors"
	"testing"
)

func TestQueueNamesAreStable(t *testing.T) {
	// These names are shared with the engine and with already-enqueued
	// work. Changing one strands tasks.
	want := map[JobCategory]string{
		CategorySpec:                 "GET_SPEC",
		CategoryCheckConnection:      "CHECK_CONNECTION",
		CategoryDiscoverSchema:       "DISCOVER_SCHEMA",
		CategorySync:                 "SYNC",
		CategoryConnectionManagement: "CONNECTION_UPDATER",
	}
	for c, name := range want {
		if got := c.QueueName(); got != name {
			t.Errorf("%s queue name = %q, want %q", c, got, name)
		}
	}
	if got := len(Categories()); got != len(want) {
		t.Errorf("categories = %d, want %d", got, len(want))
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.Valid() {
			t.Errorf("%s reported invalid", c)
		}
	}
	if JobCategory("compaction").Valid() {
		t.Error("unknown category reported valid")
	}
}

func TestConcurrencyLimitsValidate(t *testing.T) {
	if err := DefaultConcurrencyLimits().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	missing := DefaultConcurrencyLimits()
	delete(missing, CategorySync)
	if err := missing.Validate(); !errors.Is(err, ErrBadConcurrency) {
		t.Errorf("missing category: err = %v, want ErrBadConcurrency", err)
	}

	zero := DefaultConcurrencyLimits()
	zero[CategorySpec] = 0
	if err := zero.Validate(); !errors.Is(err, ErrBadConcurrency) {
		t.Errorf("zero ceiling: err = %v, want ErrBadConcurrency", err)
	}

	stray := DefaultConcurrencyLimits()
	stray[JobCategory("compaction")] = 3
	if err := stray.Validate(); !errors.Is(err, ErrBadConcurrency) {
		t.Errorf("unknown category: err = %v, want ErrBadConcurrency", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	noWorkspace := DefaultConfig()
	noWorkspace.WorkspaceRoot = ""
	if err := noWorkspace.Validate(); !errors.Is(err, ErrMissingWorkspace) {
		t.Errorf("err = %v, want ErrMissingWorkspace", err)
	}

	kubeNoNS := DefaultConfig()
	kubeNoNS.Environment = EnvKubernetes
	if err := kubeNoNS.Validate(); !errors.Is(err, ErrMissingNamespace) {
		t.Errorf("err = %v, want ErrMissingNamespace", err)
	}

	orchNoNS := DefaultConfig()
	orchNoNS.OrchestratorEnabled = true
	if err := orchNoNS.Validate(); !errors.Is(err, ErrMissingNamespace) {
		t.Errorf("err = %v, want ErrMissingNamespace", err)
	}
}

func TestTaskStateKey(t *testing.T) {
	task := Task{JobID: "42", AttemptID: "3"}
	if got := task.StateKey(); got != "42/3" {
		t.Errorf("state key = %q, want %q", got, "42/3")
	}
}

func TestEnvSecrets(t *testing.T) {
	t.Setenv("SECRET_DB_PASSWORD", "hunter2")

	v, err := EnvSecrets{}.Hydrate(context.Background(), "secret-db-password")
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if v != "hunter2" {
		t.Errorf("value = %q", v)
	}

	if _, err := (EnvSecrets{}).Hydrate(context.Background(), "secret-missing"); err == nil {
		t.Fatal("expected missing secret to error")
	}
}

func TestNewRuntimeContextDefaultsSecrets(t *testing.T) {
	rt := NewRuntimeContext(DefaultConfig(), nil)
	if rt.Secrets == nil {
		t.Fatal("secrets accessor not defaulted")
	}
	if _, ok := rt.Secrets.(EnvSecrets); !ok {
		t.Errorf("default secrets = %T, want EnvSecrets", rt.Secrets)
	}
}
