// Package dirlock implements a crash-safe mutual exclusion primitive for
// processes sharing one filesystem, with no lock manager process behind it.
//
// The lock for a name is a directory: its atomic creation is the single
// arbitration point between competing acquirers. The winner stamps the
// directory with a metadata token, a single empty file whose NAME encodes
// the holder's process fingerprint ("<pid> <start time>"). Because a pid
// alone can be recycled by the OS, the start time acts as a generation
// counter: a recorded fingerprint that no longer matches a live process
// proves the holder is dead, and the next acquirer tears the abandoned lock
// down before claiming it. A holder that crashes therefore never wedges the
// lock; it is reclaimed lazily on the next acquisition attempt.
package dirlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/dirlock/dirlock/app/core/filesystem"
	"github.com/dirlock/dirlock/app/core/fingerprint"
)

const (
	lockSuffix = ".lock"
	dirPerm    = 0o755
	tokenPerm  = 0o644

	// Lock names longer than this are hashed rather than used verbatim,
	// keeping directory names comfortably inside filesystem limits.
	maxVerbatimName = 128
)

// Handle is the opaque proof of a held lock, returned by Acquire and
// consumed by Release. It wraps the metadata token path.
type Handle struct {
	tokenPath string
}

// TokenPath exposes the token location for logging and diagnostics.
func (h Handle) TokenPath() string {
	return h.tokenPath
}

// State describes a lock as observed at one instant. It is a snapshot:
// nothing prevents the lock from changing hands right after the observation.
type State struct {
	Name string
	// Free reports that the lock directory does not exist.
	Free bool
	// Corrupt reports an indeterminate directory: zero or multiple entries,
	// or a token name that does not parse. Reclaim never acts on such a
	// directory.
	Corrupt bool
	// Holder is the recorded fingerprint when the token parses.
	Holder fingerprint.Fingerprint
	// HolderAlive reports whether a process matching Holder is running.
	HolderAlive bool
}

// Dirlock coordinates exclusive access between independent processes that
// share a base directory on one filesystem.
type Dirlock interface {
	// Acquire claims the named lock. It returns a Handle on success, ErrBusy
	// when another live holder has the lock, and any other error for I/O
	// faults on this attempt. There is no internal waiting or retrying.
	Acquire(ctx context.Context, name string) (Handle, error)

	// Release gives a held lock back. ErrAlreadyReleased reports that
	// another process cleaned this lock up first.
	Release(ctx context.Context, h Handle) error

	// Reclaim removes the named lock if its recorded holder is provably
	// dead. It is advisory: Acquire runs it automatically, and its outcome
	// never decides an acquisition. Exposed for operational tooling.
	Reclaim(ctx context.Context, name string) error

	// Inspect reports the current state of the named lock without mutating
	// anything.
	Inspect(ctx context.Context, name string) (State, error)
}

type dirlock struct {
	basePath  string
	fs        filesystem.FileSystem
	inspector fingerprint.Inspector
	logger    *slog.Logger
}

// New creates a Dirlock over basePath. Every process competing for the same
// locks must use the same basePath on a shared filesystem; the directory
// itself must already exist. A nil logger falls back to a default text
// handler.
func New(basePath string, fs filesystem.FileSystem, inspector fingerprint.Inspector, logger *slog.Logger) Dirlock {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return &dirlock{
		basePath:  basePath,
		fs:        fs,
		inspector: inspector,
		logger:    logger,
	}
}

// DirName maps a lock name to its directory name under the base path. Plain
// names are used verbatim as "<name>.lock"; names carrying path separators
// or other unsafe characters are replaced by an xxhash64 digest so every
// lock still lives as a single flat entry under the base directory.
func DirName(name string) string {
	if verbatimSafe(name) {
		return name + lockSuffix
	}
	return fmt.Sprintf("x%016x%s", xxhash.Sum64String(name), lockSuffix)
}

func verbatimSafe(name string) bool {
	if name == "" || len(name) > maxVerbatimName {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func (d *dirlock) dirPath(name string) string {
	return filepath.Join(d.basePath, DirName(name))
}

// Acquire implements Dirlock.
func (d *dirlock) Acquire(ctx context.Context, name string) (Handle, error) {
	dir := d.dirPath(name)

	// Advisory pass: clear the lock if its recorded holder is dead. The
	// outcome is deliberately discarded; the directory creation below is
	// the sole authority on whether this acquisition succeeds.
	_ = d.reclaimDir(ctx, dir)

	if err := d.fs.CreateDir(ctx, dir, dirPerm); err != nil {
		if errors.Is(err, os.ErrExist) {
			d.logger.DebugContext(ctx, "lock is held", "name", name, "path", dir)
			return Handle{}, fmt.Errorf("%w: %s", ErrBusy, name)
		}
		return Handle{}, fmt.Errorf("dirlock: create lock directory for %q: %w", name, err)
	}

	self, err := fingerprint.Self(ctx, d.inspector)
	if err != nil {
		// The claim stands but could not be stamped. Leave the directory in
		// place; a later reclaim/acquire cycle resolves it.
		return Handle{}, fmt.Errorf("dirlock: fingerprint own process for %q: %w", name, err)
	}

	tokenPath := filepath.Join(dir, self.String())
	if err := d.fs.CreateFileOnly(ctx, tokenPath, tokenPerm); err != nil {
		return Handle{}, fmt.Errorf("dirlock: write metadata token for %q: %w", name, err)
	}

	d.logger.DebugContext(ctx, "lock acquired", "name", name, "holder", self.String())
	return Handle{tokenPath: tokenPath}, nil
}

// Release implements Dirlock. The token goes first and the directory second:
// as long as the directory exists the lock reads as busy, so a crash between
// the two steps leaves a state the next reclaim can resolve, never a state
// where two holders overlap.
func (d *dirlock) Release(ctx context.Context, h Handle) error {
	if h.tokenPath == "" {
		return fmt.Errorf("dirlock: release of zero handle")
	}

	if err := d.fs.RemoveFile(ctx, h.tokenPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Another process released or reclaimed this lock first. Stop
			// here and do not touch the directory: it may already belong to
			// a new holder.
			return fmt.Errorf("%w: %s", ErrAlreadyReleased, h.tokenPath)
		}
		return fmt.Errorf("dirlock: remove metadata token: %w", err)
	}

	dir := filepath.Dir(h.tokenPath)
	if err := d.fs.RemoveDir(ctx, dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Someone else finished the teardown between our two steps.
			return nil
		}
		return fmt.Errorf("dirlock: remove lock directory: %w", err)
	}

	d.logger.DebugContext(ctx, "lock released", "path", dir)
	return nil
}

// Reclaim implements Dirlock.
func (d *dirlock) Reclaim(ctx context.Context, name string) error {
	return d.reclaimDir(ctx, d.dirPath(name))
}

// reclaimDir removes the lock at dir when its recorded holder is provably
// dead. It must never remove a token belonging to a live, matching holder,
// and it must never treat a token it cannot read as stale.
func (d *dirlock) reclaimDir(ctx context.Context, dir string) error {
	entries, err := d.fs.ListDir(ctx, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// No directory, nothing to reclaim.
			return nil
		}
		return fmt.Errorf("dirlock: list lock directory %s: %w", dir, err)
	}

	// Zero entries means an acquirer is between claiming the directory and
	// writing its token; more than one means something foreign landed in
	// the directory. Either way the state is ambiguous, so act on nothing.
	if len(entries) != 1 {
		return nil
	}

	recorded, err := fingerprint.Parse(entries[0])
	if err != nil {
		// Fail closed: a token that cannot be read is never treated as
		// stale.
		return fmt.Errorf("dirlock: unreadable metadata token in %s: %w", dir, err)
	}

	current, alive, err := d.inspector.Lookup(ctx, recorded.Pid)
	if err != nil {
		return fmt.Errorf("dirlock: process table lookup for recorded holder %s: %w", recorded, err)
	}
	if alive && current == recorded {
		// Genuinely held.
		return nil
	}

	// The recorded holder is gone, or its pid now belongs to a younger
	// process. Tear the abandoned lock down through the release path.
	d.logger.InfoContext(ctx, "reclaiming stale lock",
		"path", dir,
		"holder", recorded.String(),
		"pid_recycled", alive,
	)
	if err := d.Release(ctx, Handle{tokenPath: filepath.Join(dir, entries[0])}); err != nil {
		return fmt.Errorf("dirlock: reclaim stale lock %s: %w", dir, err)
	}
	return nil
}

// Inspect implements Dirlock.
func (d *dirlock) Inspect(ctx context.Context, name string) (State, error) {
	dir := d.dirPath(name)
	state := State{Name: name}

	entries, err := d.fs.ListDir(ctx, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			state.Free = true
			return state, nil
		}
		return State{}, fmt.Errorf("dirlock: list lock directory %s: %w", dir, err)
	}

	if len(entries) != 1 {
		state.Corrupt = true
		return state, nil
	}

	recorded, err := fingerprint.Parse(entries[0])
	if err != nil {
		state.Corrupt = true
		return state, nil
	}
	state.Holder = recorded

	current, alive, err := d.inspector.Lookup(ctx, recorded.Pid)
	if err != nil {
		return State{}, fmt.Errorf("dirlock: process table lookup for recorded holder %s: %w", recorded, err)
	}
	state.HolderAlive = alive && current == recorded

	return state, nil
}
