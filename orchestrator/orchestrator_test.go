package orchestrator

import (
	"context"
	"errors"
	"testing"

	"k8s.io/client-go/kubernetes/fake"

	"github.com/xraph/airlift"
	"github.com/xraph/airlift/statestore"
)

func TestDecide_Disabled(t *testing.T) {
	cfg := airlift.DefaultConfig()
	cfg.OrchestratorEnabled = false

	h, err := Decide(cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != nil {
		t.Fatalf("expected nil handle when disabled, got %+v", h)
	}
}

func TestDecide_EnabledInCluster(t *testing.T) {
	cfg := airlift.DefaultConfig()
	cfg.OrchestratorEnabled = true
	cfg.Environment = airlift.EnvKubernetes
	cfg.KubeNamespace = "jobs"
	cfg.StateStorage.Backend = statestore.BackendMemory

	kube := fake.NewClientset()
	h, err := Decide(cfg, kube)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil {
		t.Fatal("expected handle when enabled")
	}
	if h.Namespace != "jobs" {
		t.Errorf("namespace = %q, want %q", h.Namespace, "jobs")
	}
	if h.Kube != kube {
		t.Error("handle does not carry the injected cluster client")
	}
	if h.Pods == nil {
		t.Error("handle has no pod launch strategy")
	}

	// The state store is usable and rooted at the fixed prefix.
	ctx := context.Background()
	if err := h.States.Put(ctx, "7/1", []byte("cursor")); err != nil {
		t.Fatalf("put through handle: %v", err)
	}
	got, err := h.States.Get(ctx, "7/1")
	if err != nil {
		t.Fatalf("get through handle: %v", err)
	}
	if string(got) != "cursor" {
		t.Errorf("get = %q, want %q", got, "cursor")
	}
}

// The hand-off always needs a cluster client, even when the worker itself
// runs outside kubernetes.
func TestDecide_EnabledOutsideCluster(t *testing.T) {
	cfg := airlift.DefaultConfig()
	cfg.OrchestratorEnabled = true
	cfg.Environment = airlift.EnvDocker
	cfg.KubeNamespace = "jobs"
	cfg.StateStorage.Backend = statestore.BackendMemory

	kube := fake.NewClientset()
	h, err := Decide(cfg, kube)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h == nil {
		t.Fatal("expected handle when enabled")
	}
	if h.Kube != kube {
		t.Error("handle does not carry the cluster client")
	}
	if h.Pods == nil {
		t.Error("handle has no pod launch strategy")
	}
}

func TestDecide_MissingNamespace(t *testing.T) {
	cfg := airlift.DefaultConfig()
	cfg.OrchestratorEnabled = true
	cfg.Environment = airlift.EnvKubernetes
	cfg.KubeNamespace = ""
	cfg.StateStorage.Backend = statestore.BackendMemory

	_, err := Decide(cfg, fake.NewClientset())
	if !errors.Is(err, airlift.ErrMissingNamespace) {
		t.Fatalf("err = %v, want ErrMissingNamespace", err)
	}
}

func TestDecide_BadBackend(t *testing.T) {
	cfg := airlift.DefaultConfig()
	cfg.OrchestratorEnabled = true
	cfg.Environment = airlift.EnvDocker
	cfg.KubeNamespace = "jobs"
	cfg.StateStorage.Backend = "s3"

	_, err := Decide(cfg, nil)
	if !errors.Is(err, airlift.ErrUnknownBackend) {
		t.Fatalf("err = %v, want ErrUnknownBackend", err)
	}
}
