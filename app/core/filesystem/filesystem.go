// Package filesystem wraps the handful of filesystem operations the locking
// protocol relies on behind an interface, so the protocol can be exercised
// against a fake in tests and so the atomicity requirements of each call are
// spelled out in one place.
package filesystem

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileSystem defines the filesystem operations used by the lock protocol.
//
// Two semantic details matter more than usual here. CreateDir and
// CreateFileOnly must be atomic create-if-absent calls that fail when the
// target already exists: directory creation is the sole serialization point
// between competing acquirers. RemoveFile and RemoveDir must propagate
// not-exist errors instead of swallowing them, because losing a removal race
// against another process is information the caller acts on.
type FileSystem interface {
	// CreateDir atomically creates the directory at path. It fails when the
	// directory already exists.
	// Parameters:
	//   - ctx: Context for cancellation and logging
	//   - path: The directory path to create
	//   - perm: File mode permissions (e.g., 0755)
	// Returns:
	//   - error: os.ErrExist (wrapped) when present, any other error otherwise
	CreateDir(ctx context.Context, path string, perm os.FileMode) error

	// CreateFileOnly creates an empty file at the specified path. It fails
	// when the file already exists.
	// Parameters:
	//   - ctx: Context for cancellation and logging
	//   - path: The file path to create
	//   - perm: File mode permissions (e.g., 0644)
	// Returns:
	//   - error: Any error encountered during file creation
	CreateFileOnly(ctx context.Context, path string, perm os.FileMode) error

	// ListDir returns the names of the entries directly under path.
	// Parameters:
	//   - ctx: Context for cancellation and logging
	//   - path: The directory to list
	// Returns:
	//   - []string: Entry names, in directory order
	//   - error: os.ErrNotExist (wrapped) when the directory is missing
	ListDir(ctx context.Context, path string) ([]string, error)

	// RemoveFile removes the file at path. A missing file is reported as an
	// error so callers can detect that another process removed it first.
	RemoveFile(ctx context.Context, path string) error

	// RemoveDir removes the directory at path. It fails when the directory
	// is not empty or does not exist.
	RemoveDir(ctx context.Context, path string) error

	// CheckIfDirExists checks if a directory exists at the specified path.
	CheckIfDirExists(ctx context.Context, path string) (bool, error)

	// Stat returns file info for the path, with os.IsNotExist-compatible
	// errors for missing paths.
	Stat(ctx context.Context, path string) (os.FileInfo, error)
}

// fileSystemImpl implements the FileSystem interface on the real OS.
type fileSystemImpl struct {
	logger *slog.Logger
}

// New creates a FileSystem backed by the operating system.
func New() FileSystem {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return &fileSystemImpl{logger: logger}
}

// CreateDir implements the CreateDir method of the FileSystem interface.
// os.Mkdir (not MkdirAll) keeps the create-if-absent atomicity: exactly one
// of any number of concurrent callers succeeds.
func (fs *fileSystemImpl) CreateDir(ctx context.Context, path string, perm os.FileMode) error {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Creating directory", "path", cleanPath, "perm", perm)

	if err := os.Mkdir(cleanPath, perm); err != nil {
		fs.logger.DebugContext(ctx, "Failed to create directory", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to create directory %s: %w", cleanPath, err)
	}

	return nil
}

// CreateFileOnly implements the CreateFileOnly method of the FileSystem
// interface. O_EXCL makes creation atomic: the file either did not exist and
// is now ours, or the call fails.
func (fs *fileSystemImpl) CreateFileOnly(ctx context.Context, path string, perm os.FileMode) error {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Creating empty file", "path", cleanPath, "perm", perm)

	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		fs.logger.DebugContext(ctx, "Failed to create empty file", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to create empty file %s: %w", cleanPath, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file after creation %s: %w", cleanPath, err)
	}

	return nil
}

// ListDir implements the ListDir method of the FileSystem interface.
func (fs *fileSystemImpl) ListDir(ctx context.Context, path string) ([]string, error) {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Listing directory", "path", cleanPath)

	entries, err := os.ReadDir(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory %s: %w", cleanPath, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// RemoveFile implements the RemoveFile method of the FileSystem interface.
// Unlike a convenience remove, a missing file is an error here: the caller
// needs to know it lost the removal race.
func (fs *fileSystemImpl) RemoveFile(ctx context.Context, path string) error {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Removing file", "path", cleanPath)

	if err := os.Remove(cleanPath); err != nil {
		fs.logger.DebugContext(ctx, "Failed to remove file", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to remove file %s: %w", cleanPath, err)
	}

	return nil
}

// RemoveDir implements the RemoveDir method of the FileSystem interface.
// os.Remove (not RemoveAll) refuses to delete a non-empty directory, which
// protects entries written by another process after ours were removed.
func (fs *fileSystemImpl) RemoveDir(ctx context.Context, path string) error {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Removing directory", "path", cleanPath)

	if err := os.Remove(cleanPath); err != nil {
		fs.logger.DebugContext(ctx, "Failed to remove directory", "path", cleanPath, "error", err)
		return fmt.Errorf("failed to remove directory %s: %w", cleanPath, err)
	}

	return nil
}

// CheckIfDirExists implements the CheckIfDirExists method of the FileSystem interface.
func (fs *fileSystemImpl) CheckIfDirExists(ctx context.Context, path string) (bool, error) {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Checking if directory exists", "path", cleanPath)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		fs.logger.ErrorContext(ctx, "Failed to check directory existence", "path", cleanPath, "error", err)
		return false, fmt.Errorf("failed to check directory existence %s: %w", cleanPath, err)
	}

	if !info.IsDir() {
		return false, fmt.Errorf("path %s is a file, not a directory", cleanPath)
	}

	return true, nil
}

// Stat implements the FileSystem interface.
func (fs *fileSystemImpl) Stat(ctx context.Context, path string) (os.FileInfo, error) {
	cleanPath := filepath.Clean(path)
	fs.logger.DebugContext(ctx, "Statting path", "path", cleanPath)
	return os.Stat(cleanPath)
}
