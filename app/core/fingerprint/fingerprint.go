// Package fingerprint identifies a single process instance on the local host.
//
// A bare pid is ambiguous because the operating system recycles identifiers
// after a process exits. Pairing the pid with the start time reported by the
// OS process table turns it into a fingerprint that stays unique for the
// practical lifetime of the machine: a recycled pid always carries a younger
// start time.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/process"
)

// Fingerprint identifies one live process instance.
type Fingerprint struct {
	// Pid is the operating system process identifier.
	Pid int32
	// Epoch is the process start time as reported by the process table,
	// in milliseconds since the Unix epoch.
	Epoch int64
}

// String renders the fingerprint as "<pid> <epoch>" with a single space as
// the only separator. This exact form is used for metadata token names on
// disk, so it must stay stable.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%d %d", f.Pid, f.Epoch)
}

// Parse is the inverse of String. It accepts exactly two integer fields
// separated by one space and rejects everything else.
func Parse(name string) (Fingerprint, error) {
	fields := strings.Split(name, " ")
	if len(fields) != 2 {
		return Fingerprint{}, fmt.Errorf("fingerprint: malformed token name %q", name)
	}

	pid, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: invalid pid in token name %q: %w", name, err)
	}

	epoch, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint: invalid epoch in token name %q: %w", name, err)
	}

	return Fingerprint{Pid: int32(pid), Epoch: epoch}, nil
}

// Inspector looks processes up in a process table.
type Inspector interface {
	// Lookup returns the fingerprint of the process with the given pid.
	// The second return value is false when no such process exists; that is
	// an expected, common outcome and never reported as an error.
	Lookup(ctx context.Context, pid int32) (Fingerprint, bool, error)
}

// NewInspector returns an Inspector backed by the real OS process table.
func NewInspector() Inspector {
	return &osInspector{}
}

type osInspector struct{}

func (o *osInspector) Lookup(ctx context.Context, pid int32) (Fingerprint, bool, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		// gopsutil reports a missing pid as an error; for us that is the
		// plain "absent" case.
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return Fingerprint{}, false, nil
		}
		return Fingerprint{}, false, fmt.Errorf("fingerprint: process table lookup for pid %d: %w", pid, err)
	}

	epoch, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		// The process can exit between the existence check and the start
		// time read. That narrow window counts as absent too.
		return Fingerprint{}, false, nil
	}

	return Fingerprint{Pid: pid, Epoch: epoch}, true, nil
}

// Self returns the fingerprint of the calling process as seen through the
// given inspector.
func Self(ctx context.Context, inspector Inspector) (Fingerprint, error) {
	pid := int32(os.Getpid())

	fp, ok, err := inspector.Lookup(ctx, pid)
	if err != nil {
		return Fingerprint{}, err
	}
	if !ok {
		return Fingerprint{}, fmt.Errorf("fingerprint: calling process %d missing from the process table", pid)
	}

	return fp, nil
}

// Table is an in-memory Inspector: a simulated process table whose entries
// are controlled entirely by the caller. It exists so the locking protocol
// can be exercised deterministically without spawning and killing real
// processes. Safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	procs map[int32]int64
}

// NewTable returns an empty simulated process table.
func NewTable() *Table {
	return &Table{procs: make(map[int32]int64)}
}

// Register adds or replaces a process entry. Re-registering a pid with a new
// epoch simulates the OS recycling that pid for a younger process.
func (t *Table) Register(pid int32, epoch int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.procs[pid] = epoch
}

// Remove deletes a process entry, simulating process exit.
func (t *Table) Remove(pid int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.procs, pid)
}

// Lookup implements Inspector.
func (t *Table) Lookup(ctx context.Context, pid int32) (Fingerprint, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	epoch, ok := t.procs[pid]
	if !ok {
		return Fingerprint{}, false, nil
	}
	return Fingerprint{Pid: pid, Epoch: epoch}, true, nil
}
