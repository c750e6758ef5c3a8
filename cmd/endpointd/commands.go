package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/endpointd/internal/config"
	"github.com/kalambet/endpointd/internal/kb"
	"github.com/kalambet/endpointd/internal/search"
)

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the demo knowledge base into the local store",
	Long: `Load the demo knowledge base into the local store.

Inserts the canned endpoint-support entries plus one sample log line and
one device health snapshot. Runs against the database directly, so the
server does not need to be running. Seeding twice inserts duplicates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := kb.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening knowledge base: %w", err)
		}
		defer store.Close()

		n, err := store.Seed()
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}

		printSuccess("Seeded %d knowledge base entries", n)
		return nil
	},
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index <sqlite|uploads>",
	Short: "Build the vector index from the KB or uploaded documents",
	Long: `Build the vector index from the KB or uploaded documents.

  endpointd index sqlite    embed every knowledge base row
  endpointd index uploads   embed uploaded files and attached documents

Both run through the server so indexing shares its embedder and store.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := args[0]
		if target != "sqlite" && target != "uploads" {
			return fmt.Errorf("unknown index target %q (want sqlite or uploads)", target)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		switch target {
		case "sqlite":
			printStep("Indexing knowledge base rows...")
			resp, err := client.post(cmd.Context(), "/vector/index/sqlite", nil)
			if err != nil {
				return err
			}
			var result struct {
				OK     bool                  `json:"ok"`
				Result search.KBIndexSummary `json:"result"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("Indexed %d chunks from %d KB rows into %s",
				result.Result.IndexedChunks, result.Result.KBRows, result.Result.Collection)
			return nil

		case "uploads":
			printStep("Indexing uploaded documents...")
			resp, err := client.post(cmd.Context(), "/vector/index/uploads", nil)
			if err != nil {
				return err
			}
			var result struct {
				OK      bool                     `json:"ok"`
				Results []search.DirIndexSummary `json:"results"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			var files, chunks, skipped int
			for _, r := range result.Results {
				files += r.FilesSeen
				chunks += r.IndexedChunks
				skipped += r.Skipped
			}
			printSuccess("Indexed %d chunks from %d files (%d skipped)", chunks, files, skipped)
		}
		return nil
	},
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ask", map[string]string{"question": question})
		if err != nil {
			return err
		}

		var answer struct {
			Answer     string  `json:"answer"`
			Source     string  `json:"source"`
			Confidence float64 `json:"confidence"`
		}
		if err := decodeJSON(resp, &answer); err != nil {
			return err
		}

		fmt.Println(answer.Answer)
		printStatus("Source", "%s", answer.Source)
		printStatus("Confidence", "%.2f", answer.Confidence)
		return nil
	},
}

// --- research ---

var researchCmd = &cobra.Command{
	Use:   "research <question>",
	Short: "Run a deep research pass combining KB, documents and device signals",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/deep-research", map[string]string{"question": question})
		if err != nil {
			return err
		}

		var result struct {
			Answer     string `json:"answer"`
			Source     string `json:"source"`
			KBUsed     bool   `json:"kb_used"`
			FileUsed   bool   `json:"file_used"`
			HealthUsed bool   `json:"health_used"`
			LogsUsed   bool   `json:"logs_used"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		printStatus("Signals", "kb=%v files=%v health=%v logs=%v",
			result.KBUsed, result.FileUsed, result.HealthUsed, result.LogsUsed)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
