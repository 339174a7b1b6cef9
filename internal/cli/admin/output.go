package admin

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cloo-solutions/regassist/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printManifest(w io.Writer, m *domain.IndexManifest) {
	fmt.Fprintf(w, "Version:    %s\n", m.Version)
	fmt.Fprintf(w, "Rows:       %d\n", m.Rows)
	fmt.Fprintf(w, "Dimensions: %d\n", m.Dimensions)
	fmt.Fprintf(w, "Model:      %s\n", m.EmbeddingModel)
	fmt.Fprintf(w, "Checksum:   %s\n", m.Checksum)
	if !m.BuiltAt.IsZero() {
		fmt.Fprintf(w, "Built at:   %s\n", m.BuiltAt.UTC().Format(time.RFC3339))
	}
}
