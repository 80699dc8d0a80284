package system

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"
)

// ErrLowDiskSpace is returned when the output volume is below the configured floor.
var ErrLowDiskSpace = errors.New("insufficient free disk space")

// ErrNoImages is returned by FindLatestImage when the directory holds no image.
var ErrNoImages = errors.New("no images found")

// FreeSpace reports the bytes available to unprivileged users on the volume
// holding path.
func FreeSpace(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage %s: %w", path, err)
	}
	return usage.Free, nil
}

// EnsureFreeSpace fails with ErrLowDiskSpace when path's volume has less than
// minMB mebibytes free. A zero minMB disables the check.
func EnsureFreeSpace(path string, minMB uint64) error {
	if minMB == 0 {
		return nil
	}
	free, err := FreeSpace(path)
	if err != nil {
		return err
	}
	if free < minMB<<20 {
		return fmt.Errorf("%w: %s has %d MiB free, need %d MiB", ErrLowDiskSpace, path, free>>20, minMB)
	}
	return nil
}

// WriteFileAtomic writes data to a uniquely named temp file next to path and
// renames it into place, so readers never observe a partial JPEG.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// MoveFile renames src to dst, falling back to copy and remove when they sit
// on different filesystems.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	in.Close()
	return os.Remove(src)
}

// FindLatestImage returns the most recently modified file in dir accepted by
// isImage. A file path is resolved to its parent directory.
func FindLatestImage(path string, isImage func(name string) bool) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	searchDir := path
	if !fi.IsDir() {
		searchDir = filepath.Dir(path)
	}

	files, err := os.ReadDir(searchDir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !isImage(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if latestFile == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(searchDir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("%w in %s", ErrNoImages, searchDir)
	}

	return latestFile, nil
}
