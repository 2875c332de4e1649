package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	tempPrefix = ".tmp-"
	oldPrefix  = ".old-"
)

type bundleFile struct {
	name string
	data []byte
}

// publishBundle writes files into a hidden temp directory under root and
// swaps it into root/slug only after every file has been synced. On error the
// temp directory is removed and any previous bundle stays in place.
func publishBundle(root, slug string, files []bundleFile) (dir string, err error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating builds dir: %w", err)
	}

	tmp, err := os.MkdirTemp(root, tempPrefix+slug+"-")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := os.Chmod(tmp, 0o755); err != nil {
		return "", fmt.Errorf("chmod temp dir: %w", err)
	}
	for _, f := range files {
		if err := writeSynced(filepath.Join(tmp, f.name), f.data); err != nil {
			return "", err
		}
	}
	if err := syncDir(tmp); err != nil {
		return "", err
	}

	final := filepath.Join(root, slug)
	if err := swapInto(root, tmp, final); err != nil {
		return "", err
	}
	_ = syncDir(root)
	return final, nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	return nil
}

// swapInto renames tmp to final. An existing final directory is moved aside
// first and restored if the second rename fails.
func swapInto(root, tmp, final string) error {
	_, statErr := os.Stat(final)
	switch {
	case errors.Is(statErr, fs.ErrNotExist):
		if err := os.Rename(tmp, final); err != nil {
			return fmt.Errorf("publishing bundle: %w", err)
		}
		return nil
	case statErr != nil:
		return fmt.Errorf("checking existing bundle: %w", statErr)
	}

	aside := filepath.Join(root, oldPrefix+filepath.Base(final)+"-"+uuid.NewString()[:8])
	if err := os.Rename(final, aside); err != nil {
		return fmt.Errorf("moving previous bundle aside: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		if restoreErr := os.Rename(aside, final); restoreErr != nil {
			return fmt.Errorf("publishing bundle: %w (restore failed: %v)", err, restoreErr)
		}
		return fmt.Errorf("publishing bundle: %w", err)
	}
	_ = os.RemoveAll(aside)
	return nil
}
