package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	chatcmder "github.com/jaaabir/tim-ai/cmd/tim/chat"
	indexcmder "github.com/jaaabir/tim-ai/cmd/tim/index"
	servecmder "github.com/jaaabir/tim-ai/cmd/tim/serve"
)

const rootLongDesc = `tim is a personal portfolio chatbot.

It answers questions about its owner by retrieving passages from a
vector index and generating grounded replies with an LLM. The serve
command runs the HTTP chat server, chat opens a terminal client
against a running server, and index ingests portfolio passages.`

func main() {
	root := &cobra.Command{
		Use:           "tim",
		Short:         "Personal portfolio chatbot",
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(servecmder.NewServeCmd())
	root.AddCommand(chatcmder.NewChatCmd())
	root.AddCommand(indexcmder.NewIndexCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
