package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func newPod(name, node string, containerID string) *corev1.Pod {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Labels:    map[string]string{"app": "checkout"},
			Namespace: "default",
		},
		Spec: corev1.PodSpec{
			NodeName: node,
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
		},
	}
	if containerID != "" {
		pod.Status.ContainerStatuses = []corev1.ContainerStatus{{ContainerID: containerID}}
	}
	return pod
}

// TestListReplicas_ContainerIDMatchesAgentConvention guards the keyspace
// both the router's metrics cache and the engine's scale-down aggregate
// depend on: Task.ID must be the same 12-character container-runtime id
// the agent reports, not the Pod UID.
func TestListReplicas_ContainerIDMatchesAgentConvention(t *testing.T) {
	pod := newPod("checkout-abc123", "worker-1", "containerd://0123456789abcdef0123456789abcdef")
	clientset := fake.NewSimpleClientset(pod)
	client := NewK8sClient(clientset, "default")

	tasks, err := client.ListReplicas(context.Background(), "checkout")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "0123456789ab", tasks[0].ID)
	require.Equal(t, "worker-1", tasks[0].NodeName)
}

func TestListReplicas_FallsBackToPodUIDBeforeContainerStarts(t *testing.T) {
	pod := newPod("checkout-def456", "worker-2", "")
	pod.UID = "11111111-2222-3333-4444-555555555555"
	clientset := fake.NewSimpleClientset(pod)
	client := NewK8sClient(clientset, "default")

	tasks, err := client.ListReplicas(context.Background(), "checkout")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "11111111-2222-3333-4444-555555555555", tasks[0].ID)
}

func TestListReplicas_SkipsTerminalPods(t *testing.T) {
	running := newPod("checkout-running", "worker-1", "docker://aaaaaaaaaaaabbbbbbbbbbbbcccccccccccc")
	succeeded := newPod("checkout-succeeded", "worker-1", "docker://bbbbbbbbbbbbccccccccccccdddddddddddd")
	succeeded.Status.Phase = corev1.PodSucceeded

	clientset := fake.NewSimpleClientset(running, succeeded)
	client := NewK8sClient(clientset, "default")

	tasks, err := client.ListReplicas(context.Background(), "checkout")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, "aaaaaaaaaaaa", tasks[0].ID)
}

func TestGetServiceNode_MatchesOnDerivedContainerID(t *testing.T) {
	pod := newPod("checkout-abc123", "worker-3", "containerd://fedcba9876543210fedcba9876543210")
	clientset := fake.NewSimpleClientset(pod)
	client := NewK8sClient(clientset, "default")

	node, err := client.GetServiceNode(context.Background(), "checkout", "fedcba987654")
	require.NoError(t, err)
	require.Equal(t, "worker-3", node)
}
