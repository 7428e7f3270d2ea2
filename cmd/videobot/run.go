package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shouni/video-task-kit/pkg/bot"
	"github.com/shouni/video-task-kit/pkg/domain"
)

func newRunCommand(c *cli) *cobra.Command {
	var (
		images       []string
		conversation string
		sender       string
	)
	cmd := &cobra.Command{
		Use:   "run <message...>",
		Short: "Run a single chat command and print the result",
		Example: `  videobot run text-to-video a cat surfing at sunset
  videobot run --image ./cat.gif image-to-video make it dance`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, c.cfg, newHTTPClient(c.cfg), bot.NewWriterMessenger(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer a.plugin.Terminate(context.WithoutCancel(ctx))

			msg := cliMessage(strings.Join(args, " "), images, conversation, sender)
			if !a.plugin.Handle(ctx, msg) {
				return fmt.Errorf("message does not start with a trigger phrase: %q", msg.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&images, "image", "i", nil, "reference image: path, URL, data URI or base64:// payload (repeatable, first usable one wins)")
	cmd.Flags().StringVar(&conversation, "conversation", "cli", "conversation id printed with each message")
	cmd.Flags().StringVar(&sender, "sender", "", "sender id")
	return cmd
}

// cliMessage はコマンドライン引数を受信メッセージに変換します。
func cliMessage(text string, images []string, conversation, sender string) domain.Message {
	chain := []domain.Node{domain.Text{Content: text}}
	for _, ref := range images {
		chain = append(chain, domain.Image{URL: ref})
	}
	return domain.Message{
		Conversation: domain.ConversationRef(conversation),
		SenderID:     sender,
		Text:         text,
		Chain:        chain,
	}
}
