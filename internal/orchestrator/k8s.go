package orchestrator

import (
	"context"
	"fmt"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes"

	"github.com/swarmguard/swarmguard/internal/apierr"
)

// ForceUpdateAnnotation carries the monotonic force-update counter
// (spec.md §4.2 APPLY_ROLLING_UPDATE) as a pod-template annotation, the
// idiomatic way to force a Deployment to recreate pods without an image
// change.
const ForceUpdateAnnotation = "swarmguard.io/force-update"

// NotOnNodeConstraintPrefix marks a placement constraint meaning "do not
// schedule onto this node" (spec.md §4.2 PLAN_UPDATE: "node.hostname !=
// from_node").
const NotOnNodeConstraintPrefix = "node.hostname!="

// k8sClient backs Client with a Kubernetes Deployment (≈ service) / Pod
// (≈ task) model, per SPEC_FULL.md §2.1's DOMAIN STACK binding.
type k8sClient struct {
	clientset kubernetes.Interface
	namespace string
}

var _ Client = (*k8sClient)(nil)

// NewK8sClient builds a Client backed by clientset, scoped to namespace.
func NewK8sClient(clientset kubernetes.Interface, namespace string) Client {
	return &k8sClient{clientset: clientset, namespace: namespace}
}

func (k *k8sClient) GetServiceNode(ctx context.Context, serviceName, containerID string) (string, error) {
	tasks, err := k.ListReplicas(ctx, serviceName)
	if err != nil {
		return "", err
	}
	for _, t := range tasks {
		if t.ID == containerID {
			return t.NodeName, nil
		}
	}
	return "", apierr.NewAPIError(404, "task not found", containerID)
}

func (k *k8sClient) ListReplicas(ctx context.Context, serviceName string) ([]Task, error) {
	pods, err := k.clientset.CoreV1().Pods(k.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("app=%s", serviceName),
	})
	if err != nil {
		return nil, wrapK8sError(err, "list pods")
	}

	tasks := make([]Task, 0, len(pods.Items))
	for _, p := range pods.Items {
		if p.Status.Phase == corev1.PodSucceeded || p.Status.Phase == corev1.PodFailed {
			continue
		}
		tasks = append(tasks, Task{
			ID:       containerIDFromPod(p),
			NodeName: p.Spec.NodeName,
			State:    strings.ToLower(string(p.Status.Phase)),
		})
	}
	return tasks, nil
}

// containerIDFromPod derives the same container-runtime id the local agent
// reports (spec.md §3 models "container id" as one identity shared by the
// agent and the orchestrator). A Pod's ContainerStatuses report the
// container-runtime id as "<runtime>://<full-id>" (e.g.
// "containerd://abcdef0123..."); CgroupLister truncates that same id to 12
// hex characters, so this does too — the two sides must agree on both the
// id itself and its length for the router's metrics cache and the engine's
// scale-down aggregate (both keyed by this id) to ever find a match, and
// for the migrator/stale-alert-rejection comparisons against
// agent.Alert.ContainerID to succeed. A pod without a container status yet
// (still being scheduled/created) falls back to its UID so it still has a
// stable identity; it is replaced by the real container id on the next
// ListReplicas call once the container starts reporting one.
func containerIDFromPod(p corev1.Pod) string {
	for _, cs := range p.Status.ContainerStatuses {
		if cs.ContainerID == "" {
			continue
		}
		id := cs.ContainerID
		if i := strings.LastIndex(id, "://"); i >= 0 {
			id = id[i+3:]
		}
		if len(id) > 12 {
			id = id[:12]
		}
		return id
	}
	return string(p.UID)
}

func (k *k8sClient) GetService(ctx context.Context, serviceName string) (*Service, error) {
	dep, err := k.clientset.AppsV1().Deployments(k.namespace).Get(ctx, serviceName, metav1.GetOptions{})
	if err != nil {
		return nil, wrapK8sError(err, "get deployment")
	}

	var replicas int
	if dep.Spec.Replicas != nil {
		replicas = int(*dep.Spec.Replicas)
	}

	return &Service{
		Name:                 serviceName,
		DesiredReplicas:      replicas,
		PlacementConstraints: extractNodeAntiAffinityConstraints(dep),
	}, nil
}

func (k *k8sClient) ListServices(ctx context.Context) ([]Service, error) {
	deps, err := k.clientset.AppsV1().Deployments(k.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapK8sError(err, "list deployments")
	}

	services := make([]Service, 0, len(deps.Items))
	for _, dep := range deps.Items {
		var replicas int
		if dep.Spec.Replicas != nil {
			replicas = int(*dep.Spec.Replicas)
		}
		services = append(services, Service{
			Name:                 dep.Name,
			DesiredReplicas:      replicas,
			PlacementConstraints: extractNodeAntiAffinityConstraints(&dep),
		})
	}
	return services, nil
}

func (k *k8sClient) UpdateService(ctx context.Context, serviceName string, update ServiceUpdate) error {
	deployments := k.clientset.AppsV1().Deployments(k.namespace)

	dep, err := deployments.Get(ctx, serviceName, metav1.GetOptions{})
	if err != nil {
		return wrapK8sError(err, "get deployment for update")
	}

	applyStartFirstStrategy(dep, update.UpdatePolicy)
	applyNodeAntiAffinity(dep, update.PlacementConstraints)

	if dep.Spec.Template.Annotations == nil {
		dep.Spec.Template.Annotations = map[string]string{}
	}
	dep.Spec.Template.Annotations[ForceUpdateAnnotation] = fmt.Sprintf("%d", update.ForceUpdate)

	_, err = deployments.Update(ctx, dep, metav1.UpdateOptions{})
	if err != nil {
		return wrapK8sError(err, "update deployment")
	}
	return nil
}

func (k *k8sClient) ScaleService(ctx context.Context, serviceName string, delta int) (before, after int, err error) {
	deployments := k.clientset.AppsV1().Deployments(k.namespace)

	dep, getErr := deployments.Get(ctx, serviceName, metav1.GetOptions{})
	if getErr != nil {
		return 0, 0, wrapK8sError(getErr, "get deployment for scale")
	}

	if dep.Spec.Replicas != nil {
		before = int(*dep.Spec.Replicas)
	}
	after = before + delta
	if after < 0 {
		after = 0
	}

	replicas := int32(after)
	dep.Spec.Replicas = &replicas

	if _, err := deployments.Update(ctx, dep, metav1.UpdateOptions{}); err != nil {
		return before, before, wrapK8sError(err, "scale deployment")
	}
	return before, after, nil
}

// applyStartFirstStrategy sets the Deployment's RollingUpdate strategy to
// the zero-downtime shape spec.md §4.2 mandates: new pod Ready before the
// old is removed, one at a time. maxSurge=1/maxUnavailable=0 is the
// idiomatic Kubernetes equivalent of "start-first ordering, parallelism 1".
func applyStartFirstStrategy(dep *appsv1.Deployment, policy UpdatePolicy) {
	surge := intOrStringFromInt(max(policy.Parallelism, 1))
	unavailable := intOrStringFromInt(0)
	dep.Spec.Strategy = appsv1.DeploymentStrategy{
		Type: appsv1.RollingUpdateDeploymentStrategyType,
		RollingUpdate: &appsv1.RollingUpdateDeployment{
			MaxSurge:       &surge,
			MaxUnavailable: &unavailable,
		},
	}
}

func applyNodeAntiAffinity(dep *appsv1.Deployment, constraints []string) {
	var excludedHosts []string
	for _, c := range constraints {
		if host, ok := strings.CutPrefix(c, NotOnNodeConstraintPrefix); ok {
			excludedHosts = append(excludedHosts, host)
		}
	}
	if len(excludedHosts) == 0 {
		return
	}

	if dep.Spec.Template.Spec.Affinity == nil {
		dep.Spec.Template.Spec.Affinity = &corev1.Affinity{}
	}
	dep.Spec.Template.Spec.Affinity.NodeAffinity = &corev1.NodeAffinity{
		RequiredDuringSchedulingIgnoredDuringExecution: &corev1.NodeSelector{
			NodeSelectorTerms: []corev1.NodeSelectorTerm{
				{
					MatchExpressions: []corev1.NodeSelectorRequirement{
						{
							Key:      "kubernetes.io/hostname",
							Operator: corev1.NodeSelectorOpNotIn,
							Values:   excludedHosts,
						},
					},
				},
			},
		},
	}
}

func extractNodeAntiAffinityConstraints(dep *appsv1.Deployment) []string {
	affinity := dep.Spec.Template.Spec.Affinity
	if affinity == nil || affinity.NodeAffinity == nil || affinity.NodeAffinity.RequiredDuringSchedulingIgnoredDuringExecution == nil {
		return nil
	}
	var constraints []string
	for _, term := range affinity.NodeAffinity.RequiredDuringSchedulingIgnoredDuringExecution.NodeSelectorTerms {
		for _, expr := range term.MatchExpressions {
			if expr.Key == "kubernetes.io/hostname" && expr.Operator == corev1.NodeSelectorOpNotIn {
				for _, v := range expr.Values {
					constraints = append(constraints, NotOnNodeConstraintPrefix+v)
				}
			}
		}
	}
	return constraints
}

func wrapK8sError(err error, op string) error {
	if apierrors.IsNotFound(err) {
		return apierr.NewAPIError(404, op, err.Error())
	}
	return apierr.NewAPIError(500, op, err.Error())
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func intOrStringFromInt(n int) intstr.IntOrString {
	return intstr.FromInt(n)
}
