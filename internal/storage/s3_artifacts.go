package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/indexer"
)

// ErrObjectNotFound is returned by ObjectStore implementations for missing keys.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the subset of S3 operations the artifact mirror needs.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// S3ArtifactStore mirrors index builds to object storage using the same
// layout as FileStore: <prefix>/versions/<version>/... plus <prefix>/CURRENT.
type S3ArtifactStore struct {
	objects ObjectStore
	prefix  string
}

func NewS3ArtifactStore(objects ObjectStore, prefix string) *S3ArtifactStore {
	return &S3ArtifactStore{objects: objects, prefix: strings.Trim(prefix, "/")}
}

// Publish uploads the index, mapping and manifest, then moves CURRENT.
func (s *S3ArtifactStore) Publish(ctx context.Context, art *indexer.Artifacts) error {
	if art == nil || art.Index == nil {
		return domain.ErrMissingRequiredField.WithCause(errors.New("artifacts"))
	}
	version := art.Manifest.Version

	var index bytes.Buffer
	if err := art.Index.Encode(&index); err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	mapping, err := json.Marshal(art.Mapping)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	manifest, err := json.Marshal(art.Manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	uploads := []struct {
		name, contentType string
		body              []byte
	}{
		{IndexFile, "application/octet-stream", index.Bytes()},
		{MappingFile, "application/json", mapping},
		{ManifestFile, "application/json", manifest},
	}
	for _, u := range uploads {
		if err := s.objects.PutObject(ctx, s.versionKey(version, u.name), u.body, u.contentType); err != nil {
			return domain.ErrStorageOperationFail.WithCause(err)
		}
	}

	if err := s.objects.PutObject(ctx, s.key(CurrentFile), []byte(version+"\n"), "text/plain"); err != nil {
		return domain.ErrStorageOperationFail.WithCause(err)
	}
	return nil
}

// Fetch downloads and verifies the build CURRENT points at.
func (s *S3ArtifactStore) Fetch(ctx context.Context) (*indexer.Artifacts, error) {
	current, err := s.objects.GetObject(ctx, s.key(CurrentFile))
	if err != nil {
		return nil, s.fetchErr(err)
	}
	version := strings.TrimSpace(string(current))
	if version == "" {
		return nil, domain.ErrArtifactNotFound.WithCause(errors.New("empty current pointer"))
	}

	var manifest domain.IndexManifest
	if err := s.getJSON(ctx, s.versionKey(version, ManifestFile), &manifest); err != nil {
		return nil, err
	}
	var mapping []domain.MappingEntry
	if err := s.getJSON(ctx, s.versionKey(version, MappingFile), &mapping); err != nil {
		return nil, err
	}

	raw, err := s.objects.GetObject(ctx, s.versionKey(version, IndexFile))
	if err != nil {
		return nil, s.fetchErr(err)
	}
	index, err := indexer.DecodeFlatIndex(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	if err := manifest.Verify(mapping, index.ChunkIDs(), index.Dimensions()); err != nil {
		return nil, err
	}
	return &indexer.Artifacts{Index: index, Mapping: mapping, Manifest: manifest}, nil
}

func (s *S3ArtifactStore) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.objects.GetObject(ctx, key)
	if err != nil {
		return s.fetchErr(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func (s *S3ArtifactStore) fetchErr(err error) error {
	if errors.Is(err, ErrObjectNotFound) {
		return domain.ErrArtifactNotFound.WithCause(err)
	}
	return domain.ErrStorageOperationFail.WithCause(err)
}

func (s *S3ArtifactStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3ArtifactStore) versionKey(version, name string) string {
	return s.key(path.Join(versionsDir, version, name))
}
