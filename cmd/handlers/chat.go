package handlers

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"newsdesk/internal/logger"
)

// NewChatCmd creates the chat command for asking about the current highlights
func NewChatCmd() *cobra.Command {
	chatCmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask a question about the current news highlights",
		Long: `Answer a question using the semantic index over the current highlights.

The question is matched against indexed highlights and answered with the
configured language model, or extractively when no model is available.

Example:
  newsdesk chat "what happened in finance today?"`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			question := strings.Join(args, " ")
			if err := runChat(cmd, question); err != nil {
				logger.Error("Chat failed", err)
				os.Exit(1)
			}
		},
	}

	return chatCmd
}

func runChat(cmd *cobra.Command, question string) error {
	ctx := cmd.Context()

	svc, err := buildServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	answer, err := svc.bot.Answer(ctx, question)
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}
