package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// IndexManifest describes one published index build.
type IndexManifest struct {
	Version        string    `json:"version"`
	Rows           int       `json:"rows"`
	Dimensions     int       `json:"dimensions"`
	EmbeddingModel string    `json:"embedding_model"`
	Checksum       string    `json:"checksum"`
	BuiltAt        time.Time `json:"built_at"`
}

// AlignmentChecksum hashes the row count, dimension and ordered chunk IDs of a build.
// Any reordering, truncation or substitution of rows changes the result.
func AlignmentChecksum(rows, dimensions int, chunkIDs []string) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(rows))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(dimensions))
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(len(chunkIDs)))
	h.Write(buf[:])
	for _, id := range chunkIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateAlignment checks that mapping entry i sits at position i and names row i's chunk.
func ValidateAlignment(mapping []MappingEntry, rowIDs []string) error {
	if len(mapping) != len(rowIDs) {
		return ErrIndexMisaligned.WithCause(
			fmt.Errorf("mapping has %d entries, index has %d rows", len(mapping), len(rowIDs)))
	}
	for i, entry := range mapping {
		if entry.Position != i {
			return ErrIndexMisaligned.WithCause(
				fmt.Errorf("mapping entry %d has position %d", i, entry.Position))
		}
		if entry.ID != rowIDs[i] {
			return ErrIndexMisaligned.WithCause(
				fmt.Errorf("row %d holds chunk %q, mapping expects %q", i, rowIDs[i], entry.ID))
		}
	}
	return nil
}

// Verify checks the manifest against the loaded mapping and row payloads.
func (m *IndexManifest) Verify(mapping []MappingEntry, rowIDs []string, dimensions int) error {
	if m.Rows != len(mapping) {
		return ErrIndexMisaligned.WithCause(
			fmt.Errorf("manifest declares %d rows, mapping has %d", m.Rows, len(mapping)))
	}
	if m.Dimensions != dimensions {
		return ErrIndexMisaligned.WithCause(
			fmt.Errorf("manifest declares %d dimensions, index has %d", m.Dimensions, dimensions))
	}
	if err := ValidateAlignment(mapping, rowIDs); err != nil {
		return err
	}
	if sum := AlignmentChecksum(len(rowIDs), dimensions, rowIDs); sum != m.Checksum {
		return ErrIndexMisaligned.WithCause(fmt.Errorf("checksum mismatch"))
	}
	return nil
}
