package cli

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickbits/docvec/internal/config"
	"github.com/nickbits/docvec/internal/ui"
)

var (
	removeByID bool
	removeAll  bool
)

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:   "remove [path|id]",
	Short: "Remove documents from the store",
	Long: `Remove a previously ingested document and all of its chunks.

The argument is a file path by default; pass --id to remove by
document ID instead, or --all to clear the store entirely. Removing a
document that is not in the store is not an error.

Examples:
  # Remove by source path
  docvec remove ./docs/handbook.pdf

  # Remove by document ID
  docvec remove --id 1b4e28ba-2fa1-11d2-883f-b9a761bde3fb

  # Clear the whole store
  docvec remove --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&removeByID, "id", false, "treat the argument as a document ID")
	removeCmd.Flags().BoolVar(&removeAll, "all", false, "remove every document from the store")
}

func runRemove(cmd *cobra.Command, args []string) error {
	if removeAll && len(args) > 0 {
		return fmt.Errorf("--all takes no argument")
	}
	if !removeAll && len(args) == 0 {
		return fmt.Errorf("requires a path or --id argument, or --all")
	}

	cfg := config.Get()

	svc, err := openService(cfg)
	if err != nil {
		return err
	}

	if removeAll {
		res := svc.Clear()
		if res.ChunksRemoved == 0 {
			fmt.Println("Store is already empty.")
			return nil
		}
		if res.Warning != "" {
			log.Warn("Snapshot not updated", "warning", res.Warning)
		}
		fmt.Println(ui.Success.Render("Store cleared"))
		fmt.Printf("  Chunks: %d\n", res.ChunksRemoved)
		return nil
	}

	target := args[0]

	docID := target
	if !removeByID {
		absPath, err := filepath.Abs(target)
		if err != nil {
			return fmt.Errorf("failed to resolve path: %w", err)
		}
		id, _, ok := svc.FindBySource(absPath)
		if !ok {
			fmt.Println(ui.Warning.Render("Not in store: " + target))
			return nil
		}
		docID = id
	}

	res := svc.RemoveDocument(docID)
	if res.ChunksRemoved == 0 {
		fmt.Println(ui.Warning.Render("Not in store: " + target))
		return nil
	}

	if res.Warning != "" {
		log.Warn("Snapshot not updated", "warning", res.Warning)
	}

	fmt.Println(ui.Success.Render("Removed"))
	fmt.Printf("  Document: %s\n", docID)
	fmt.Printf("  Chunks:   %d\n", res.ChunksRemoved)

	return nil
}
