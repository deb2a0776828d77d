package chatcmder

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jaaabir/tim-ai/pkg/client"
	"github.com/jaaabir/tim-ai/tui"
)

const chatLongDesc = `Open a terminal chat session against a running tim server.

Each session speaks on a fresh thread, so the conversation starts
clean. The shared secret is read from --secret or the SECRET_KEY
environment variable.

Examples:
  tim chat http://localhost:8000
  SECRET_KEY=s3cret tim chat https://tim.example.com`

type chatCommander struct {
	secret  string
	persona string
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat <server-url>",
		Short: "Open a terminal chat session",
		Long:  chatLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&cmder.secret, "secret", "s", "", "Shared secret (default: SECRET_KEY env)")
	cmd.Flags().StringVar(&cmder.persona, "name", "Muhammed Jaabir", "Persona name shown in the greeting")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, serverURL string) error {
	serverURL = strings.TrimRight(serverURL, "/")

	secret := c.secret
	if secret == "" {
		secret = os.Getenv("SECRET_KEY")
	}
	if secret == "" {
		return fmt.Errorf("a shared secret is required (--secret or SECRET_KEY)")
	}

	cl := client.New(serverURL, secret)
	return tui.Run(cmd.Context(), cl, c.persona)
}
