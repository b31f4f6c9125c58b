package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/agribot/pkg/agent"
	"github.com/ilkoid/agribot/pkg/journal"
	"github.com/ilkoid/agribot/pkg/session"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "chat")
	assert.Contains(t, names, "journal")

	flag := root.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "config.yaml", flag.DefValue)
}

func TestRenderReply(t *testing.T) {
	out := renderReply(agent.ChatResponse{Response: "Hello farmer"})
	assert.Contains(t, out, "Hello farmer")
	assert.NotContains(t, out, "action=")

	out = renderReply(agent.ChatResponse{
		Response: "Created!",
		Action:   agent.ActionProductCreated,
		Data:     map[string]any{"imageUploaded": true, "compressedSizeKb": 120.5},
	})
	assert.Contains(t, out, "action=product_created compressedSizeKb=120.5 imageUploaded=true")
}

func TestRenderReply_Wraps(t *testing.T) {
	long := strings.Repeat("tomato ", 30)
	out := renderReply(agent.ChatResponse{Response: long})
	for _, l := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(l), replyWidth+len("agribot> ")+32, "line should be wrapped")
	}
	assert.Greater(t, strings.Count(out, "\n"), 1)
}

// journalConfig создаёт базу журнала с записями и конфиг, указывающий на неё.
func journalConfig(t *testing.T, entries ...journal.Entry) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")

	store, err := journal.Open(dbPath)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, store.Record(context.Background(), e))
	}
	require.NoError(t, store.Close())

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("journal:\n  path: "+dbPath+"\n"), 0o644))
	return cfgPath
}

func TestRunJournal_BySessionAndToken(t *testing.T) {
	hash := session.Hash(session.KeyFromToken("farmer-token"))
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cfgPath := journalConfig(t,
		journal.Entry{SessionHash: hash, Tool: "get_farmer_products", Result: "You have no products listed yet.", OK: true, CreatedAt: base},
		journal.Entry{SessionHash: hash, Tool: "create_product", Result: "Error: Authentication failed.\nPlease login again.", CreatedAt: base.Add(time.Second)},
		journal.Entry{SessionHash: "someone-else", Tool: "search_products", OK: true, CreatedAt: base},
	)

	var out bytes.Buffer
	require.NoError(t, runJournal(context.Background(), cfgPath, journalOptions{sessionHash: hash}, &out))

	text := out.String()
	assert.Contains(t, text, "TOOL")
	assert.Contains(t, text, "Error: Authentication failed. Please login again.")
	assert.Less(t, strings.Index(text, "create_product"), strings.Index(text, "get_farmer_products"), "newest first")
	assert.NotContains(t, text, "search_products")

	var byToken bytes.Buffer
	require.NoError(t, runJournal(context.Background(), cfgPath, journalOptions{token: "farmer-token", limit: 1}, &byToken))
	assert.Contains(t, byToken.String(), "create_product")
	assert.NotContains(t, byToken.String(), "get_farmer_products")
}

func TestRunJournal_Errors(t *testing.T) {
	err := runJournal(context.Background(), "absent.yaml", journalOptions{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "--session or --token")

	disabled := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(disabled, []byte("app:\n  debug: false\n"), 0o644))
	err = runJournal(context.Background(), disabled, journalOptions{sessionHash: "abc"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "journal is disabled")

	var out bytes.Buffer
	require.NoError(t, runJournal(context.Background(), journalConfig(t), journalOptions{sessionHash: "abc"}, &out))
	assert.Equal(t, "No tool executions for session abc.\n", out.String())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b", preview(" a\n b "))
	long := preview(strings.Repeat("x", resultPreview+10))
	assert.Equal(t, resultPreview+1, len([]rune(long)))
}
