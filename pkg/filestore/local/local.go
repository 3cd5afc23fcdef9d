package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type store struct {
	root string
}

func New(root string) *store {
	return &store{root: root}
}

func (s *store) Upload(ctx context.Context, path, name string) error {
	dst := filepath.Join(s.root, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("local: couldn't create folder for %q: %w", dst, err)
	}
	if err := copyFile(path, dst); err != nil {
		return fmt.Errorf("local: couldn't copy file %q to %q: %w", path, dst, err)
	}
	return nil
}

func (s *store) Location(name string) string {
	return filepath.Join(s.root, name)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	srcFileInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	// Create or truncate the destination keeping the source permissions
	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcFileInfo.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		_ = dstFile.Close()
		return err
	}
	return dstFile.Close()
}
