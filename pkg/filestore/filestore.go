package filestore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/igolaizola/musikgen/pkg/filestore/local"
	"github.com/igolaizola/musikgen/pkg/filestore/s3"
	"github.com/rs/zerolog"
)

type fs interface {
	Upload(ctx context.Context, path, name string) error
	Location(name string) string
}

// Store uploads generated files to a local folder or an s3 bucket.
type Store struct {
	fs     fs
	prefix string
}

// Upload stores the file under its base name and returns its location.
func (s *Store) Upload(ctx context.Context, path string) (string, error) {
	name := s.prefix + filepath.Base(path)
	if err := s.fs.Upload(ctx, path, name); err != nil {
		return "", fmt.Errorf("filestore: %w", err)
	}
	return s.fs.Location(name), nil
}

// New creates a store.
// Connection strings are a path for local and key:secret@bucket.region[/prefix] for s3.
func New(ctx context.Context, typ, conn string, logger zerolog.Logger) (*Store, error) {
	var fs fs
	var prefix string
	switch typ {
	case "s3":
		split := strings.Split(conn, "@")
		if len(split) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 connection string %q", conn)
		}
		auth := strings.Split(split[0], ":")
		if len(auth) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 auth string %q", conn)
		}
		key := auth[0]
		secret := auth[1]
		location := split[1]
		if i := strings.Index(location, "/"); i >= 0 {
			prefix = strings.Trim(location[i+1:], "/")
			if prefix != "" {
				prefix += "/"
			}
			location = location[:i]
		}
		loc := strings.Split(location, ".")
		if len(loc) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 location string %q", conn)
		}
		bucket := loc[0]
		region := loc[1]
		candidate, err := s3.New(ctx, key, secret, region, bucket, logger)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	case "local":
		if conn == "" {
			return nil, fmt.Errorf("filestore: local path is empty")
		}
		fs = local.New(conn)
	default:
		return nil, fmt.Errorf("filestore: unknown file storage type %q", typ)
	}
	return &Store{fs: fs, prefix: prefix}, nil
}
