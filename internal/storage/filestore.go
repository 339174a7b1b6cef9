// Package storage persists index builds and the chunk corpus.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
)

// Artifact file names inside a version directory.
const (
	IndexFile    = "index.bin"
	MappingFile  = "mapping.json"
	ManifestFile = "manifest.json"
	CurrentFile  = "CURRENT"
	versionsDir  = "versions"
)

// FileStore keeps index builds in versioned directories under a root and
// points at the live one through a CURRENT file. A build becomes visible only
// after all of its artifacts are on disk.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the directory the store manages.
func (s *FileStore) Root() string { return s.root }

// Publish writes art into a fresh version directory and makes it current.
func (s *FileStore) Publish(ctx context.Context, art *indexer.Artifacts) error {
	if art == nil || art.Index == nil {
		return domain.ErrMissingRequiredField.WithCause(errors.New("artifacts"))
	}
	if err := art.Manifest.Verify(art.Mapping, art.Index.ChunkIDs(), art.Index.Dimensions()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := s.versionDir(art.Manifest.Version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.ErrStorageOperationFail.WithCause(fmt.Errorf("failed to create version dir: %w", err))
	}

	if err := writeFileAtomic(filepath.Join(dir, IndexFile), func(f *os.File) error {
		return art.Index.Encode(f)
	}); err != nil {
		return domain.ErrStorageOperationFail.WithCause(fmt.Errorf("failed to write index: %w", err))
	}
	if err := writeJSONAtomic(filepath.Join(dir, MappingFile), art.Mapping); err != nil {
		return domain.ErrStorageOperationFail.WithCause(fmt.Errorf("failed to write mapping: %w", err))
	}
	if err := writeJSONAtomic(filepath.Join(dir, ManifestFile), art.Manifest); err != nil {
		return domain.ErrStorageOperationFail.WithCause(fmt.Errorf("failed to write manifest: %w", err))
	}

	if err := writeFileAtomic(filepath.Join(s.root, CurrentFile), func(f *os.File) error {
		_, err := f.WriteString(art.Manifest.Version + "\n")
		return err
	}); err != nil {
		return domain.ErrStorageOperationFail.WithCause(fmt.Errorf("failed to swap current pointer: %w", err))
	}
	return nil
}

// Current returns the live version name.
func (s *FileStore) Current() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, CurrentFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", domain.ErrArtifactNotFound.WithCause(err)
		}
		return "", domain.ErrStorageOperationFail.WithCause(err)
	}
	version := strings.TrimSpace(string(data))
	if version == "" || strings.ContainsAny(version, `/\`) || version == "." || version == ".." {
		return "", domain.ErrArtifactNotFound.WithCause(fmt.Errorf("invalid current pointer %q", version))
	}
	return version, nil
}

// Load reads and verifies the live build. Every failure is reported as
// IndexUnavailable.
func (s *FileStore) Load(ctx context.Context) (*indexer.Artifacts, error) {
	version, err := s.Current()
	if err != nil {
		return nil, domain.ErrIndexUnavailable.WithCause(err)
	}
	art, err := s.LoadVersion(ctx, version)
	if err != nil {
		return nil, domain.ErrIndexUnavailable.WithCause(err)
	}
	return art, nil
}

// LoadVersion reads and verifies a specific build.
func (s *FileStore) LoadVersion(ctx context.Context, version string) (*indexer.Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := s.versionDir(version)

	var manifest domain.IndexManifest
	if err := readJSON(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var mapping []domain.MappingEntry
	if err := readJSON(filepath.Join(dir, MappingFile), &mapping); err != nil {
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}

	f, err := os.Open(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	index, err := indexer.DecodeFlatIndex(f)
	if err != nil {
		return nil, err
	}

	if err := manifest.Verify(mapping, index.ChunkIDs(), index.Dimensions()); err != nil {
		return nil, err
	}

	return &indexer.Artifacts{Index: index, Mapping: mapping, Manifest: manifest}, nil
}

// Versions lists the stored build versions in ascending name order.
func (s *FileStore) Versions() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, versionsDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Prune deletes all but the newest keep versions. The current version is
// never removed.
func (s *FileStore) Prune(keep int) (int, error) {
	versions, err := s.Versions()
	if err != nil {
		return 0, err
	}
	current, _ := s.Current()

	removed := 0
	for i := 0; i < len(versions)-keep; i++ {
		if versions[i] == current {
			continue
		}
		if err := os.RemoveAll(s.versionDir(versions[i])); err != nil {
			return removed, fmt.Errorf("failed to remove version %s: %w", versions[i], err)
		}
		removed++
	}
	return removed, nil
}

func (s *FileStore) versionDir(version string) string {
	return filepath.Join(s.root, versionsDir, version)
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, write func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := write(tmp); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	return writeFileAtomic(path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
