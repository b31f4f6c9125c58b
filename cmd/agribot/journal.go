package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ilkoid/agribot/pkg/config"
	"github.com/ilkoid/agribot/pkg/journal"
	"github.com/ilkoid/agribot/pkg/session"
)

// resultPreview: сколько символов результата показывать в строке.
const resultPreview = 60

type journalOptions struct {
	sessionHash string
	token       string
	limit       int
}

func newJournalCmd(configPath *string) *cobra.Command {
	var opts journalOptions

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent tool executions of a session",
		Long: "Reads the tool journal (journal.path) and prints the latest tool calls\n" +
			"of one session, newest first. The session is the hash from the logs\n" +
			"or is derived from the farmer's token.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJournal(cmd.Context(), *configPath, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.sessionHash, "session", "", "session hash as printed in the logs")
	cmd.Flags().StringVar(&opts.token, "token", "", "farmer bearer token (hashed locally)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "maximum number of entries")
	cmd.MarkFlagsMutuallyExclusive("session", "token")
	return cmd
}

func runJournal(ctx context.Context, configPath string, opts journalOptions, out io.Writer) error {
	hash := opts.sessionHash
	if opts.token != "" {
		hash = session.Hash(session.KeyFromToken(opts.token))
	}
	if hash == "" {
		return errors.New("either --session or --token is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Journal.Path == "" {
		return errors.New("journal is disabled: set journal.path in the config")
	}

	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := store.Recent(ctx, hash, opts.limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintf(out, "No tool executions for session %s.\n", hash)
		return err
	}
	return writeJournal(out, entries)
}

// writeJournal печатает записи таблицей: время, инструмент, статус, длительность, результат.
func writeJournal(out io.Writer, entries []journal.Entry) error {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "ok"
		if !e.OK {
			status = "error"
		}
		rows = append(rows, []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Tool,
			status,
			e.Duration.String(),
			preview(e.Result),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(grayColor)).
		Headers("TIME", "TOOL", "STATUS", "DURATION", "RESULT").
		Rows(rows...)

	_, err := fmt.Fprintln(out, t.Render())
	return err
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= resultPreview {
		return s
	}
	return string(r[:resultPreview]) + "…"
}
