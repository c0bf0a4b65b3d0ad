package agent

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// CgroupLister implements ContainerLister by reading cgroup v2 accounting
// files directly off the node, one subdirectory per container under Root
// (e.g. /sys/fs/cgroup/system.slice/docker-<id>.scope). No concrete
// container-runtime client exists anywhere in the example pack this agent
// was grounded on, so this reads the kernel's own accounting files instead
// of adding an unintroduced runtime-client dependency. Per-container
// network accounting isn't exposed by cgroups (it requires netns-level
// instrumentation), so Rx/Tx are always reported as zero here.
type CgroupLister struct {
	Root string // default /sys/fs/cgroup
}

var _ ContainerLister = (*CgroupLister)(nil)

// NewCgroupLister builds a CgroupLister rooted at root, defaulting to the
// conventional cgroup v2 mount point when root is empty.
func NewCgroupLister(root string) *CgroupLister {
	if root == "" {
		root = "/sys/fs/cgroup"
	}
	return &CgroupLister{Root: root}
}

// ListContainers enumerates every immediate child cgroup under Root whose
// name matches a container-scope naming convention and reads its cpu.stat
// and memory.current/memory.max.
func (l *CgroupLister) ListContainers(_ context.Context) ([]ContainerStats, error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		return nil, err
	}

	cores := runtime.NumCPU()
	var stats []ContainerStats
	for _, entry := range entries {
		if !entry.IsDir() || !isContainerScope(entry.Name()) {
			continue
		}
		dir := filepath.Join(l.Root, entry.Name())

		usage, err := readCPUUsageMicros(filepath.Join(dir, "cpu.stat"))
		if err != nil {
			continue
		}
		memUsed, _ := readUintFile(filepath.Join(dir, "memory.current"))
		memLimit, _ := readMemoryMax(filepath.Join(dir, "memory.max"))

		id := containerIDFromScope(entry.Name())
		stats = append(stats, ContainerStats{
			ID:            id,
			Name:          id,
			CPUTicksUsed:  usage,
			SystemTicks:   monotonicMicros() * uint64(cores),
			OnlineCPUs:    cores,
			MemUsedBytes:  memUsed,
			MemLimitBytes: memLimit,
		})
	}
	return stats, nil
}

// isContainerScope matches the systemd cgroup-scope naming convention used
// by both Docker (docker-<id>.scope) and containerd-backed runtimes
// (cri-containerd-<id>.scope).
func isContainerScope(name string) bool {
	return strings.HasSuffix(name, ".scope") &&
		(strings.HasPrefix(name, "docker-") || strings.HasPrefix(name, "cri-containerd-"))
}

func containerIDFromScope(name string) string {
	id := strings.TrimSuffix(name, ".scope")
	if i := strings.LastIndex(id, "-"); i >= 0 {
		id = id[i+1:]
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// readCPUUsageMicros reads the usage_usec field out of a cgroup v2
// cpu.stat file.
func readCPUUsageMicros(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "usage_usec" {
			return strconv.ParseUint(fields[1], 10, 64)
		}
	}
	return 0, scanner.Err()
}

func readUintFile(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
}

// readMemoryMax reads memory.max, treating the literal "max" (no limit) as
// zero so the collector's percentage computation is skipped rather than
// divided by a meaningless sentinel.
func readMemoryMax(path string) (uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(b))
	if s == "max" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// monotonicMicros stands in for "system ticks" (spec.md §4.1's CPU% formula
// diffs used-ticks against system-ticks): wall-clock microseconds since the
// process started, which List multiplies by the online-CPU count so that it
// counts CPU time available across all cores, the same unit usage_usec sums
// across cores. Only its delta between two reads is ever used.
var processStart = readClockMicros()

func monotonicMicros() uint64 {
	return readClockMicros() - processStart
}

func readClockMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}
