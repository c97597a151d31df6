package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	// workerLabel marks pods launched by this worker so they can be listed
	// and cleaned up by selector.
	workerLabel = "airlift.xraph.com/launched-by"

	// heartbeatEnvVar is the env var through which launched pods learn the
	// callback address of the launching worker's liveness endpoint.
	heartbeatEnvVar = "AIRLIFT_WORKER_HEARTBEAT_URL"

	// podPollInterval is how often Wait polls pod status.
	podPollInterval = 5 * time.Second
)

// NewClusterClient builds a Kubernetes client from in-cluster configuration,
// falling back to the ambient kubeconfig for out-of-cluster development.
func NewClusterClient() (kubernetes.Interface, error) {
	cfg, err := rest.InClusterConfig()
	if err != nil {
		loader := clientcmd.NewDefaultClientConfigLoadingRules()
		cfg, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
			loader, &clientcmd.ConfigOverrides{},
		).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("kube config: %w", err)
		}
	}
	return kubernetes.NewForConfig(cfg)
}

// KubeLauncher launches connector processes as cluster-scheduled pods.
// Launched pods receive the worker's heartbeat callback address so they can
// detect when the launching worker has gone away.
type KubeLauncher struct {
	client       kubernetes.Interface
	namespace    string
	heartbeatURL string
	logger       *slog.Logger
}

// KubeOption configures a KubeLauncher.
type KubeOption func(*KubeLauncher)

// WithKubeLogger sets the logger.
func WithKubeLogger(l *slog.Logger) KubeOption {
	return func(k *KubeLauncher) { k.logger = l }
}

// NewKubeLauncher creates the cluster-pod launch strategy bound to a
// namespace. heartbeatURL is the worker's liveness callback address; pass
// "" for pods meant to outlive the launching worker.
func NewKubeLauncher(client kubernetes.Interface, namespace, heartbeatURL string, opts ...KubeOption) *KubeLauncher {
	k := &KubeLauncher{
		client:       client,
		namespace:    namespace,
		heartbeatURL: heartbeatURL,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// podName names the launched pod after the job attempt.
func podName(spec ProcessSpec) string {
	return fmt.Sprintf("airlift-job-%s-attempt-%s", spec.JobID, spec.AttemptID)
}

// Launch implements Strategy. It creates the pod and returns once the API
// server has accepted it.
func (k *KubeLauncher) Launch(ctx context.Context, spec ProcessSpec) (Process, error) {
	name := podName(spec)

	env := make([]corev1.EnvVar, 0, len(spec.Env)+1)
	keys := make([]string, 0, len(spec.Env))
	for key := range spec.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		env = append(env, corev1.EnvVar{Name: key, Value: spec.Env[key]})
	}
	if k.heartbeatURL != "" {
		env = append(env, corev1.EnvVar{Name: heartbeatEnvVar, Value: k.heartbeatURL})
	}

	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: k.namespace,
			Labels: map[string]string{
				workerLabel: "true",
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{
				{
					Name:  "connector",
					Image: spec.Image,
					Args:  spec.Args,
					Env:   env,
				},
			},
		},
	}

	k.logger.Debug("launching pod",
		slog.String("pod", name),
		slog.String("namespace", k.namespace),
		slog.String("image", spec.Image),
	)

	created, err := k.client.CoreV1().Pods(k.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("create pod %s: %w", name, err)
	}

	return &kubeProcess{
		client:    k.client,
		namespace: k.namespace,
		name:      created.Name,
	}, nil
}

// kubeProcess is a handle to a launched pod.
type kubeProcess struct {
	client    kubernetes.Interface
	namespace string
	name      string
}

// Wait polls the pod until it reaches a terminal phase and returns the
// connector container's exit code.
func (p *kubeProcess) Wait(ctx context.Context) (int, error) {
	ticker := time.NewTicker(podPollInterval)
	defer ticker.Stop()

	for {
		pod, err := p.client.CoreV1().Pods(p.namespace).Get(ctx, p.name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				return -1, fmt.Errorf("pod %s disappeared before completion", p.name)
			}
			return -1, fmt.Errorf("get pod %s: %w", p.name, err)
		}

		switch pod.Status.Phase {
		case corev1.PodSucceeded, corev1.PodFailed:
			return containerExitCode(pod), nil
		}

		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Kill deletes the pod.
func (p *kubeProcess) Kill(ctx context.Context) error {
	err := p.client.CoreV1().Pods(p.namespace).Delete(ctx, p.name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete pod %s: %w", p.name, err)
	}
	return nil
}

// containerExitCode extracts the connector container's exit code from a
// terminal pod, defaulting to 1 when the status is missing.
func containerExitCode(pod *corev1.Pod) int {
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.State.Terminated != nil {
			return int(cs.State.Terminated.ExitCode)
		}
	}
	if pod.Status.Phase == corev1.PodSucceeded {
		return 0
	}
	return 1
}
