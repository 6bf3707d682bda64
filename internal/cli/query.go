package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickbits/docvec/internal/config"
	"github.com/nickbits/docvec/internal/retrieval"
	"github.com/nickbits/docvec/internal/ui"
	"github.com/nickbits/docvec/internal/vectorstore"
)

var (
	queryContent  bool
	queryLimit    int
	queryMinScore float64
	queryJSON     bool
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Retrieve relevant passages using semantic similarity",
	Long: `Retrieve document passages that match a natural language query.

The query is embedded with the same provider used at ingestion time and
compared against every stored chunk by cosine similarity.

Examples:
  # Basic query
  docvec query "how do refunds work"

  # Show passage text
  docvec query "how do refunds work" -c

  # More results, stricter score floor
  docvec query "escalation policy" -m 10 --min-score 0.5

  # Machine-readable output
  docvec query "escalation policy" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runQueryCmd,
}

func init() {
	queryCmd.Flags().BoolVarP(&queryContent, "content", "c", false, "show passage text in results")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "m", 0, "maximum number of results")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", -2, "minimum similarity score (-1 to 1)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
}

func runQueryCmd(cmd *cobra.Command, args []string) error {
	query := args[0]

	cfg := config.Get()

	limit := queryLimit
	if limit <= 0 {
		limit = cfg.Retrieval.TopK
	}
	minScore := queryMinScore
	if minScore < -1 {
		minScore = cfg.Retrieval.MinScore
	}

	log.Debug("Starting query", "query", query, "limit", limit, "min_score", minScore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted")
		cancel()
	}()

	svc, err := openService(cfg)
	if err != nil {
		return err
	}

	if svc.Store().Len() == 0 {
		fmt.Println("Store is empty.")
		fmt.Println()
		fmt.Println("Run 'docvec ingest <path>' first.")
		return nil
	}

	results, err := svc.Retrieve(ctx, query, limit, minScore)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("query failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if queryJSON {
		return outputJSON(results)
	}

	displayResults(results, queryContent)
	return nil
}

// displayResults formats and displays retrieval results.
func displayResults(results []vectorstore.Result, showContent bool) {
	fmt.Printf("Found %d results:\n\n", len(results))

	for i, r := range results {
		filename := r.Chunk.Metadata[retrieval.MetaFilename].Str()
		if filename == "" {
			filename = r.Chunk.DocumentID
		}

		fmt.Printf("%s %s %s\n",
			ui.Bold.Render(fmt.Sprintf("[%d]", i+1)),
			ui.FormatSource(filename, r.Chunk.Index),
			ui.FormatScore(r.Score),
		)

		span := fmt.Sprintf("Chars %d-%d", r.Chunk.StartChar, r.Chunk.EndChar)
		fmt.Printf("    %s\n", ui.Dim.Render(span))

		if showContent {
			fmt.Println()
			displayPassage(r.Chunk.Text)
		}

		fmt.Println()
	}
}

// displayPassage prints chunk text, eliding the middle of long passages.
func displayPassage(text string) {
	lines := strings.Split(text, "\n")
	maxLines := 15

	if len(lines) > maxLines {
		show := maxLines / 2
		for _, line := range lines[:show] {
			fmt.Println(ui.ResultContent.Render(line))
		}
		fmt.Println(ui.Dim.Render(fmt.Sprintf("    ... (%d lines omitted)", len(lines)-maxLines)))
		for _, line := range lines[len(lines)-show:] {
			fmt.Println(ui.ResultContent.Render(line))
		}
		return
	}

	for _, line := range lines {
		fmt.Println(ui.ResultContent.Render(line))
	}
}

// jsonResult is the machine-readable result shape.
type jsonResult struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Filename   string  `json:"filename,omitempty"`
	Index      int     `json:"index"`
	StartChar  int     `json:"start_char"`
	EndChar    int     `json:"end_char"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
}

// outputJSON writes results as indented JSON to stdout.
func outputJSON(results []vectorstore.Result) error {
	out := make([]jsonResult, 0, len(results))
	for _, r := range results {
		out = append(out, jsonResult{
			DocumentID: r.Chunk.DocumentID,
			ChunkID:    r.Chunk.ID,
			Filename:   r.Chunk.Metadata[retrieval.MetaFilename].Str(),
			Index:      r.Chunk.Index,
			StartChar:  r.Chunk.StartChar,
			EndChar:    r.Chunk.EndChar,
			Score:      r.Score,
			Text:       r.Chunk.Text,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
