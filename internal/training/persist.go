package training

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// rename is swapped out in tests to simulate a failure mid-commit.
var rename = os.Rename

type pendingFile struct {
	path string
	data []byte
}

// writeAll writes every file or none of them. Contents are staged in
// temporary files next to their targets; existing targets are moved aside and
// restored if any rename fails.
func writeAll(files []pendingFile) (err error) {
	temps := make([]string, 0, len(files))
	defer func() {
		if err != nil {
			for _, t := range temps {
				_ = os.Remove(t)
			}
		}
	}()

	for _, f := range files {
		tmp, err := stage(f)
		if err != nil {
			return err
		}
		temps = append(temps, tmp)
	}

	type backup struct{ orig, saved string }
	var backups []backup
	var committed []string
	rollback := func() {
		for _, c := range committed {
			_ = os.Remove(c)
		}
		for _, b := range backups {
			_ = rename(b.saved, b.orig)
		}
	}

	for _, f := range files {
		if _, statErr := os.Lstat(f.path); statErr == nil {
			saved := f.path + ".bak"
			if err := rename(f.path, saved); err != nil {
				rollback()
				return fmt.Errorf("moving aside %s: %w", f.path, err)
			}
			backups = append(backups, backup{orig: f.path, saved: saved})
		} else if !errors.Is(statErr, os.ErrNotExist) {
			rollback()
			return fmt.Errorf("checking %s: %w", f.path, statErr)
		}
	}

	for i, f := range files {
		if err := rename(temps[i], f.path); err != nil {
			rollback()
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		committed = append(committed, f.path)
	}

	for _, b := range backups {
		_ = os.Remove(b.saved)
	}
	return nil
}

func stage(f pendingFile) (string, error) {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("staging %s: %w", f.path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(f.data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("staging %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("staging %s: %w", f.path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("staging %s: %w", f.path, err)
	}
	return name, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("training: creating output directory: %w", err)
	}
	return nil
}
