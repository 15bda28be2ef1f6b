// Package builtin provides the standard probes cortexd registers at
// startup: process liveness, disk free space, network reachability, and
// model/file integrity — grounded on the same checks a self-hosted node
// runs against itself before it can trust its own health signal.
package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/cortexd/cortexd/internal/domain"
)

// mockable is embedded by every builtin probe to provide the test
// affordance the probe framework's capability set requires.
type mockable struct {
	mu   sync.RWMutex
	mock *domain.Reading
}

// SetMockData overrides the result of every Poll call until it is
// cleared, bypassing the real check entirely. Pass nil to resume real
// polling.
func (m *mockable) SetMockData(r *domain.Reading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mock = r
}

func (m *mockable) mockReading() (domain.Reading, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.mock == nil {
		return domain.Reading{}, false
	}
	return *m.mock, true
}

// ─── Process liveness ───────────────────────────────────────────────────────

// ProcessLiveness polls whether a tracked pid is still alive.
type ProcessLiveness struct {
	mockable
	id          string
	pid         int
	pollMs      int64
	freshnessMs int64
}

func NewProcessLiveness(id string, pid int) *ProcessLiveness {
	return &ProcessLiveness{id: id, pid: pid, pollMs: 5000, freshnessMs: 15000}
}

func (p *ProcessLiveness) SourceID() string           { return p.id }
func (p *ProcessLiveness) PollIntervalMs() int64      { return p.pollMs }
func (p *ProcessLiveness) FreshnessThresholdMs() int64 { return p.freshnessMs }

func (p *ProcessLiveness) Poll(ctx context.Context) domain.Reading {
	if r, ok := p.mockReading(); ok {
		return r
	}
	proc, err := os.FindProcess(p.pid)
	healthy := err == nil
	if healthy {
		// On unix, FindProcess always succeeds; signal 0 checks liveness.
		healthy = proc.Signal(syscall.Signal(0)) == nil
	}
	return domain.Reading{
		SourceID: p.id,
		Healthy:  healthy,
		PolledAt: time.Now(),
	}
}

// ─── Disk free space ─────────────────────────────────────────────────────────

// DiskFree polls free space on the filesystem containing path, reporting
// unhealthy once free bytes drop below minFreeBytes.
type DiskFree struct {
	mockable
	id           string
	path         string
	minFreeBytes uint64
	pollMs       int64
	freshnessMs  int64
}

func NewDiskFree(id, path string, minFreeBytes uint64) *DiskFree {
	return &DiskFree{id: id, path: path, minFreeBytes: minFreeBytes, pollMs: 30000, freshnessMs: 90000}
}

func (d *DiskFree) SourceID() string            { return d.id }
func (d *DiskFree) PollIntervalMs() int64       { return d.pollMs }
func (d *DiskFree) FreshnessThresholdMs() int64 { return d.freshnessMs }

func (d *DiskFree) Poll(ctx context.Context) domain.Reading {
	if r, ok := d.mockReading(); ok {
		return r
	}
	var stat syscall.Statfs_t
	err := syscall.Statfs(d.path, &stat)
	if err != nil {
		return domain.Reading{SourceID: d.id, Healthy: false, Err: err, PolledAt: time.Now()}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	return domain.Reading{
		SourceID: d.id,
		Value:    float64(free),
		Healthy:  free >= d.minFreeBytes,
		PolledAt: time.Now(),
	}
}

// ─── Network reachability ────────────────────────────────────────────────────

// NetworkReachability polls whether addr accepts a TCP connection, keeping
// a bounded consecutive-failure counter so transient blips don't
// immediately read as an outage.
type NetworkReachability struct {
	mockable
	id                  string
	addr                string
	timeout             time.Duration
	pollMs              int64
	freshnessMs         int64
	mu                  sync.Mutex
	consecutiveFailures int
	maxConsecutive      int
}

func NewNetworkReachability(id, addr string) *NetworkReachability {
	return &NetworkReachability{
		id: id, addr: addr, timeout: 3 * time.Second,
		pollMs: 10000, freshnessMs: 30000, maxConsecutive: 3,
	}
}

func (n *NetworkReachability) SourceID() string            { return n.id }
func (n *NetworkReachability) PollIntervalMs() int64       { return n.pollMs }
func (n *NetworkReachability) FreshnessThresholdMs() int64 { return n.freshnessMs }

func (n *NetworkReachability) Poll(ctx context.Context) domain.Reading {
	if r, ok := n.mockReading(); ok {
		return r
	}
	conn, err := net.DialTimeout("tcp", n.addr, n.timeout)
	n.mu.Lock()
	defer n.mu.Unlock()

	if err != nil {
		n.consecutiveFailures++
		partial := n.consecutiveFailures < n.maxConsecutive
		return domain.Reading{
			SourceID: n.id,
			Healthy:  false,
			Value:    float64(n.consecutiveFailures),
			Labels:   map[string]string{"partial": boolStr(partial)},
			Err:      err,
			PolledAt: time.Now(),
		}
	}
	conn.Close()
	n.consecutiveFailures = 0
	return domain.Reading{SourceID: n.id, Healthy: true, PolledAt: time.Now()}
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ─── Integrity ───────────────────────────────────────────────────────────────

// Integrity polls a file's SHA-256 digest against an expected value.
type Integrity struct {
	mockable
	id          string
	path        string
	expectedSum string
	pollMs      int64
	freshnessMs int64
}

func NewIntegrity(id, path, expectedSum string) *Integrity {
	return &Integrity{id: id, path: path, expectedSum: expectedSum, pollMs: 60000, freshnessMs: 180000}
}

func (i *Integrity) SourceID() string            { return i.id }
func (i *Integrity) PollIntervalMs() int64       { return i.pollMs }
func (i *Integrity) FreshnessThresholdMs() int64 { return i.freshnessMs }

func (i *Integrity) Poll(ctx context.Context) domain.Reading {
	if r, ok := i.mockReading(); ok {
		return r
	}
	f, err := os.Open(i.path)
	if err != nil {
		return domain.Reading{SourceID: i.id, Healthy: false, Err: err, PolledAt: time.Now()}
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return domain.Reading{SourceID: i.id, Healthy: false, Err: err, PolledAt: time.Now()}
	}
	sum := hex.EncodeToString(h.Sum(nil))
	return domain.Reading{
		SourceID: i.id,
		Healthy:  sum == i.expectedSum,
		Labels:   map[string]string{"digest": sum},
		PolledAt: time.Now(),
	}
}
