package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/ilkoid/agribot/pkg/agent"
	"github.com/ilkoid/agribot/pkg/utils"
)

// replyWidth: ширина переноса ответов бота.
const replyWidth = 80

var (
	primaryColor = lipgloss.Color("#04B575") // Зелёный
	grayColor    = lipgloss.Color("240")

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1).
			Bold(true)

	botStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true).
			Render

	hintStyle = lipgloss.NewStyle().
			Foreground(grayColor).
			Render

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true).
			Render
)

type chatOptions struct {
	token    string
	image    string
	language string
}

func newChatCmd(configPath *string) *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to AgriBot in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(*configPath, opts)
		},
	}
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("AGRIBOT_TOKEN"), "farmer bearer token")
	cmd.Flags().StringVar(&opts.image, "image", "", "image attached to the first message")
	cmd.Flags().StringVar(&opts.language, "lang", agent.LanguageAuto, "reply language: auto, en, ta")
	return cmd
}

func runChat(configPath string, opts chatOptions) error {
	app, err := initialize(configPath, "agribot-chat.log")
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle("cleanup: "+err.Error()))
		}
		utils.Close()
	}()

	var attachment []byte
	if opts.image != "" {
		if attachment, err = os.ReadFile(opts.image); err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println(headerStyle.Render("🌾 AgriBot"))
	if opts.token == "" {
		fmt.Println(hintStyle("No token: catalog tools will ask you to log in."))
	}
	fmt.Println(hintStyle("/image <path> attaches a photo to the next message, /quit exits."))
	fmt.Println()

	ctx := context.Background()
	for {
		input, err := line.Prompt("you> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch {
		case input == "/quit" || input == "/exit":
			return nil
		case strings.HasPrefix(input, "/image "):
			path := strings.TrimSpace(strings.TrimPrefix(input, "/image "))
			data, err := os.ReadFile(path)
			if err != nil {
				fmt.Println(errorStyle(err.Error()))
				continue
			}
			attachment = data
			fmt.Println(hintStyle(fmt.Sprintf("Attached %s (%d KB) to the next message.", path, len(data)/1024)))
			continue
		}

		req := agent.ChatRequest{Message: input, Language: opts.language, Token: opts.token}
		var resp agent.ChatResponse
		if attachment != nil {
			resp = app.orch.ChatWithImage(ctx, req, attachment)
			attachment = nil
		} else {
			resp = app.orch.Chat(ctx, req)
		}
		fmt.Println(renderReply(resp))
	}
}

// renderReply форматирует ответ: текст с переносом и строка с action/data.
func renderReply(resp agent.ChatResponse) string {
	var b strings.Builder
	b.WriteString(botStyle("agribot> "))
	b.WriteString(wordwrap.String(resp.Response, replyWidth))

	if resp.Action == "" && len(resp.Data) == 0 {
		b.WriteString("\n")
		return b.String()
	}

	var meta []string
	if resp.Action != "" {
		meta = append(meta, "action="+resp.Action)
	}
	keys := make([]string, 0, len(resp.Data))
	for k := range resp.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		meta = append(meta, fmt.Sprintf("%s=%v", k, resp.Data[k]))
	}

	tag := hintStyle("[" + strings.Join(meta, " ") + "]")
	if resp.Action == agent.ActionError {
		tag = errorStyle("[" + strings.Join(meta, " ") + "]")
	}
	b.WriteString("\n")
	b.WriteString(tag)
	b.WriteString("\n")
	return b.String()
}
