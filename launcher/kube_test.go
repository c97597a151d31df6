package launcher

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestKubeLaunchCreatesPod(t *testing.T) {
	client := fake.NewClientset()
	k := NewKubeLauncher(client, "jobs", "10.0.0.7:9000")

	_, err := k.Launch(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	pod, err := client.CoreV1().Pods("jobs").Get(
		context.Background(), "airlift-job-42-attempt-1", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected pod to exist: %v", err)
	}

	if pod.Labels[workerLabel] != "true" {
		t.Errorf("missing %s label", workerLabel)
	}
	if pod.Spec.RestartPolicy != corev1.RestartPolicyNever {
		t.Errorf("restart policy = %s, want Never", pod.Spec.RestartPolicy)
	}
	if len(pod.Spec.Containers) != 1 {
		t.Fatalf("expected 1 container, got %d", len(pod.Spec.Containers))
	}

	c := pod.Spec.Containers[0]
	if c.Image != "connectors/source-postgres:2.0" {
		t.Errorf("image = %q", c.Image)
	}

	var heartbeat string
	for _, env := range c.Env {
		if env.Name == heartbeatEnvVar {
			heartbeat = env.Value
		}
	}
	if heartbeat != "10.0.0.7:9000" {
		t.Errorf("heartbeat env = %q, want %q", heartbeat, "10.0.0.7:9000")
	}
}

// Pods launched without a heartbeat callback, like orchestrator pods that
// outlive the worker, get no heartbeat env var at all.
func TestKubeLaunchOmitsEmptyHeartbeat(t *testing.T) {
	client := fake.NewClientset()
	k := NewKubeLauncher(client, "jobs", "")

	if _, err := k.Launch(context.Background(), testSpec()); err != nil {
		t.Fatalf("launch: %v", err)
	}

	pod, err := client.CoreV1().Pods("jobs").Get(
		context.Background(), "airlift-job-42-attempt-1", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("expected pod to exist: %v", err)
	}
	for _, env := range pod.Spec.Containers[0].Env {
		if env.Name == heartbeatEnvVar {
			t.Errorf("unexpected %s env var %q", heartbeatEnvVar, env.Value)
		}
	}
}

func TestKubeWaitReturnsContainerExitCode(t *testing.T) {
	client := fake.NewClientset()
	k := NewKubeLauncher(client, "jobs", "10.0.0.7:9000")

	p, err := k.Launch(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	pod, err := client.CoreV1().Pods("jobs").Get(
		context.Background(), "airlift-job-42-attempt-1", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get pod: %v", err)
	}
	pod.Status.Phase = corev1.PodFailed
	pod.Status.ContainerStatuses = []corev1.ContainerStatus{
		{
			Name: "connector",
			State: corev1.ContainerState{
				Terminated: &corev1.ContainerStateTerminated{ExitCode: 3},
			},
		},
	}
	if _, err := client.CoreV1().Pods("jobs").UpdateStatus(
		context.Background(), pod, metav1.UpdateOptions{}); err != nil {
		t.Fatalf("update status: %v", err)
	}

	code, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
}

func TestKubeKillDeletesPod(t *testing.T) {
	client := fake.NewClientset()
	k := NewKubeLauncher(client, "jobs", "10.0.0.7:9000")

	p, err := k.Launch(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if err := p.Kill(context.Background()); err != nil {
		t.Fatalf("kill: %v", err)
	}

	_, err = client.CoreV1().Pods("jobs").Get(
		context.Background(), "airlift-job-42-attempt-1", metav1.GetOptions{})
	if !apierrors.IsNotFound(err) {
		t.Fatalf("expected pod to be deleted, got %v", err)
	}

	// Killing twice tolerates the pod already being gone.
	if err := p.Kill(context.Background()); err != nil {
		t.Fatalf("second kill: %v", err)
	}
}
