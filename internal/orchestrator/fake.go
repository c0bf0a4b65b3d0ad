package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/swarmguard/swarmguard/internal/apierr"
)

// Fake is an in-memory Client used by engine and router tests, grounded on
// test/integration/mock_vpsie_server.go's fake-collaborator pattern, adapted
// here as a direct in-process fake rather than an HTTP server since the
// Client interface is the test seam, not the wire.
type Fake struct {
	mu       sync.Mutex
	services map[string]*Service
	tasks    map[string][]Task
	updates  []ServiceUpdate

	// observeTicks controls how many ListReplicas calls, after an
	// UpdateService, continue to report both the old and new task as
	// simultaneously running before the old task is removed. Zero (the
	// default) applies the update immediately, matching the original
	// behaviour; a positive value lets tests exercise the migrator's
	// OBSERVE zero-downtime witness.
	observeTicks int
	pending      map[string]*pendingMigration
}

type pendingMigration struct {
	oldTaskID      string
	newTask        Task
	ticksRemaining int
}

// NewFake builds an empty Fake.
func NewFake() *Fake {
	return &Fake{
		services: make(map[string]*Service),
		tasks:    make(map[string][]Task),
		pending:  make(map[string]*pendingMigration),
	}
}

// SetObserveTicks configures how many ListReplicas calls keep the old and
// new task simultaneously visible after a migration update, for exercising
// the OBSERVE phase's zero-downtime-confirmed witness.
func (f *Fake) SetObserveTicks(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observeTicks = n
}

// Seed registers a service and its current tasks.
func (f *Fake) Seed(svc Service, tasks []Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svcCopy := svc
	f.services[svc.Name] = &svcCopy
	f.tasks[svc.Name] = append([]Task{}, tasks...)
}

// SetTaskNode moves a task to a different node, simulating a completed
// migration for stale-alert tests.
func (f *Fake) SetTaskNode(serviceName, taskID, node string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks[serviceName] {
		if t.ID == taskID {
			f.tasks[serviceName][i].NodeName = node
		}
	}
}

// Updates returns every ServiceUpdate applied so far, for assertions.
func (f *Fake) Updates() []ServiceUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ServiceUpdate{}, f.updates...)
}

func (f *Fake) GetServiceNode(_ context.Context, serviceName, containerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks[serviceName] {
		if t.ID == containerID {
			return t.NodeName, nil
		}
	}
	return "", apierr.NewAPIError(404, "task not found", containerID)
}

func (f *Fake) ListReplicas(_ context.Context, serviceName string) ([]Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks, ok := f.tasks[serviceName]
	if !ok {
		return nil, apierr.NewAPIError(404, "service not found", serviceName)
	}

	pending := f.pending[serviceName]
	if pending == nil {
		return append([]Task{}, tasks...), nil
	}

	snapshot := append([]Task{}, tasks...)
	if pending.ticksRemaining > 0 {
		pending.ticksRemaining--
		return snapshot, nil
	}

	// Settle: drop the old task, the new task is already present.
	settled := make([]Task, 0, len(snapshot))
	for _, t := range snapshot {
		if t.ID == pending.oldTaskID {
			continue
		}
		settled = append(settled, t)
	}
	f.tasks[serviceName] = settled
	delete(f.pending, serviceName)
	return append([]Task{}, settled...), nil
}

func (f *Fake) ListServices(_ context.Context) ([]Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	services := make([]Service, 0, len(f.services))
	for _, svc := range f.services {
		services = append(services, *svc)
	}
	return services, nil
}

func (f *Fake) GetService(_ context.Context, serviceName string) (*Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc, ok := f.services[serviceName]
	if !ok {
		return nil, apierr.NewAPIError(404, "service not found", serviceName)
	}
	cp := *svc
	return &cp, nil
}

func (f *Fake) UpdateService(_ context.Context, serviceName string, update ServiceUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc, ok := f.services[serviceName]
	if !ok {
		return apierr.NewAPIError(404, "service not found", serviceName)
	}
	svc.PlacementConstraints = update.PlacementConstraints
	f.updates = append(f.updates, update)

	// Simulate the orchestrator applying the start-first rolling update: a
	// new task appears on a node outside the excluded set while the old
	// task (on the excluded node) keeps running for observeTicks calls to
	// ListReplicas, then is removed — mirroring what OBSERVE/VERIFY expect.
	for _, c := range update.PlacementConstraints {
		excluded := c[len(NotOnNodeConstraintPrefix):]
		tasks := f.tasks[serviceName]
		for _, t := range tasks {
			if t.NodeName == excluded {
				newTask := Task{ID: fmt.Sprintf("%s-migrated", t.ID), NodeName: "elsewhere", State: "running"}
				if f.observeTicks <= 0 {
					f.tasks[serviceName] = replaceTask(tasks, t.ID, newTask)
					continue
				}
				f.tasks[serviceName] = append(tasks, newTask)
				f.pending[serviceName] = &pendingMigration{
					oldTaskID:      t.ID,
					newTask:        newTask,
					ticksRemaining: f.observeTicks,
				}
			}
		}
	}
	return nil
}

func replaceTask(tasks []Task, oldID string, newTask Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	for i, t := range out {
		if t.ID == oldID {
			out[i] = newTask
		}
	}
	return out
}

func (f *Fake) ScaleService(_ context.Context, serviceName string, delta int) (before, after int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	svc, ok := f.services[serviceName]
	if !ok {
		return 0, 0, apierr.NewAPIError(404, "service not found", serviceName)
	}
	before = svc.DesiredReplicas
	after = before + delta
	if after < 0 {
		after = 0
	}
	svc.DesiredReplicas = after
	return before, after, nil
}

var _ Client = (*Fake)(nil)
