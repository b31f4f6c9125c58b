/*
AgriBot: чат-ассистент фермера.

	agribot serve --config config.yaml   HTTP сервис (/chat, /chat/image, /metrics)
	agribot chat  --token <jwt>          тот же агент в терминале
	agribot journal --session <hash>     последние вызовы инструментов сессии
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "agribot",
		Short:         "AgriBot conversational product assistant for farmers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newChatCmd(&configPath))
	root.AddCommand(newJournalCmd(&configPath))
	return root
}
