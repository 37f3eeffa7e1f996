package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// FSArtifactStore implements ArtifactStore on the local filesystem. Publish
// writes to a temp file and renames, so a concurrent Load never observes a
// partially written artifact.
type FSArtifactStore struct {
	dir string
	l   *applogger.Logger
}

func NewFSArtifactStore(dir string) (*FSArtifactStore, error) {
	if dir == "" {
		dir = "artifacts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact dir: %w", err)
	}
	return &FSArtifactStore{dir: dir}, nil
}

// SetLogger injects a structured logger.
func (s *FSArtifactStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *FSArtifactStore) Publish(ctx context.Context, kind, version string, blob []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := artifactID(kind, version, blob)
	path := filepath.Join(s.dir, id)

	tmp, err := os.CreateTemp(s.dir, id+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish artifact: %w", err)
	}

	if s.l != nil {
		s.l.Info("artifact published",
			applogger.String("kind", kind),
			applogger.String("version", version),
			applogger.String("id", id),
			applogger.Int("bytes", len(blob)),
		)
	}
	return id, nil
}

func (s *FSArtifactStore) Load(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// ids are generated by this store; reject anything path-like
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return nil, fmt.Errorf("invalid artifact id: %q", id)
	}
	blob, err := os.ReadFile(filepath.Join(s.dir, id))
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", id, err)
	}
	return blob, nil
}

func artifactID(kind, version string, blob []byte) string {
	sum := sha256.Sum256(blob)
	safeKind := strings.NewReplacer("/", "_", " ", "_").Replace(kind)
	safeVersion := strings.NewReplacer("/", "_", " ", "_").Replace(version)
	return fmt.Sprintf("%s_%s_%d_%s.bin",
		safeKind, safeVersion, time.Now().Unix(), hex.EncodeToString(sum[:8]))
}
