package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	journalPath    string
	journalSession string
	journalLimit   int
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Print entries from the SQLite event journal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := journalPath
		if path == "" {
			path = cfg.JournalPath
		}
		if path == "" {
			return fmt.Errorf("no journal configured: set JOURNAL_PATH or pass --path")
		}

		journal, err := openJournal(cmd.Context(), path, logger)
		if err != nil {
			return err
		}
		defer journal.Close()

		entries, err := journal.store.List(cmd.Context(), journalSession, journalLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	journalCmd.Flags().StringVar(&journalPath, "path", "", "Journal file (default JOURNAL_PATH)")
	journalCmd.Flags().StringVar(&journalSession, "session", "", "Only show entries for this session id")
	journalCmd.Flags().IntVar(&journalLimit, "limit", 100, "Maximum entries to print")
}
