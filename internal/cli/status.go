package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nickbits/docvec/internal/config"
	"github.com/nickbits/docvec/internal/retrieval"
	"github.com/nickbits/docvec/internal/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store status and statistics",
	Long: `Display information about the document store including:
- Number of documents and chunks
- Embedding dimension
- Snapshot location and size

Examples:
  docvec status`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	store := retrieval.OpenStore(cfg.Snapshot.Path)

	fmt.Println(ui.Header.Render("Store Status"))
	fmt.Println()

	docs := store.Documents()
	if len(docs) == 0 {
		fmt.Println("Store is empty.")
		fmt.Println()
		fmt.Println("Run 'docvec ingest <path>' to add documents.")
		return nil
	}

	fmt.Printf("  Documents: %d\n", len(docs))
	fmt.Printf("  Chunks:    %d\n", store.Len())
	fmt.Printf("  Dimension: %d\n", store.Dimension())
	fmt.Printf("  Snapshot:  %s", cfg.Snapshot.Path)
	if info, err := os.Stat(cfg.Snapshot.Path); err == nil {
		fmt.Printf(" (%s)", formatBytes(info.Size()))
	}
	fmt.Println()
	fmt.Println()

	fmt.Println(ui.Bold.Render("Documents:"))
	for _, d := range docs {
		name := d.ID
		if chunks := store.DocumentChunks(d.ID); len(chunks) > 0 {
			if fn := chunks[0].Metadata[retrieval.MetaFilename].Str(); fn != "" {
				name = fn
			}
		}
		fmt.Printf("  %-40s %d chunks\n", name, d.ChunkCount)
	}

	return nil
}

// formatBytes renders a byte count in human units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
