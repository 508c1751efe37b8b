package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register <query-file.json>",
		Short: "Register or replace stored queries from a JSON file",
		Long: `Reads a JSON file holding one query object or an array of query
objects and registers them with the daemon. Existing ids are replaced.

Example query file:

  [{"id": "q1", "query": {"type": "term", "field": "text", "term": "breach"}}]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading query file: %w", err)
			}
			trimmed := strings.TrimSpace(string(data))
			if !strings.HasPrefix(trimmed, "[") {
				data = []byte("[" + trimmed + "]")
			}
			var result map[string]any
			if err := doJSON("POST", "/api/v1/queries", bytes.NewReader(data), &result); err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func newRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <query-id>",
		Short: "Remove a stored query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := doJSON("DELETE", "/api/v1/queries/"+args[0], nil, &result); err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <query-id>",
		Short: "Show a stored query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := doJSON("GET", "/api/v1/queries/"+args[0], nil, &result); err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func newMatchCommand() *cobra.Command {
	var docID, analyzer, text string
	cmd := &cobra.Command{
		Use:   "match [document-file.json]",
		Short: "Match a document against the registered queries",
		Long: `Runs one document through the matcher and prints the confirmed
matches with their positional hits. The document is either a JSON file
({"id": ..., "fields": {...}}) or raw text passed with --text.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			switch {
			case text != "":
				doc := map[string]any{"id": docID, "text": text}
				if analyzer != "" {
					doc["analyzer"] = analyzer
				}
				var err error
				if body, err = jsonMarshal(doc); err != nil {
					return err
				}
			case len(args) == 1:
				var err error
				if body, err = os.ReadFile(args[0]); err != nil {
					return fmt.Errorf("reading document file: %w", err)
				}
			default:
				return fmt.Errorf("either a document file or --text is required")
			}
			var result map[string]any
			if err := doJSON("POST", "/api/v1/match", bytes.NewReader(body), &result); err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&docID, "id", "doc", "document id for --text matches")
	cmd.Flags().StringVar(&analyzer, "analyzer", "", "analyzer name (standard, whitespace)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "raw document text (single implicit field)")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show registry statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := doJSON("GET", "/api/v1/queries", nil, &result); err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}
