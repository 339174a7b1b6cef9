package storage

import (
	"fmt"

	"github.com/cloo-solutions/regassist/internal/domain"
)

// ReadCorpus loads the chunk corpus written by the crawler.
func ReadCorpus(path string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	if err := readJSON(path, &chunks); err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}

	for i, c := range chunks {
		if c.ID == "" || c.Content == "" {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid corpus entry",
				fmt.Errorf("entry %d is missing id or content", i))
		}
	}
	return chunks, nil
}

// WriteCorpus replaces the corpus file atomically.
func WriteCorpus(path string, chunks []domain.Chunk) error {
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	if err := writeJSONAtomic(path, chunks); err != nil {
		return fmt.Errorf("failed to write corpus %s: %w", path, err)
	}
	return nil
}
