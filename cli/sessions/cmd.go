// Package sessions implements the commands managing the chat sessions.
package sessions

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/malonaz/madlen/internal/cli"
	"github.com/malonaz/madlen/internal/configuration"
	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/types"
)

// NewCmd instantiates and returns the sessions command.
func NewCmd(config *configuration.Config, gatewayOpts *gateway.Opts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage the chat sessions",
	}
	cmd.AddCommand(newListCmd(config, gatewayOpts))
	cmd.AddCommand(newDeleteCmd(config, gatewayOpts))
	return cmd
}

func newListCmd(config *configuration.Config, gatewayOpts *gateway.Opts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the chat sessions",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := gateway.NewClient(gatewayOpts)
			chats, err := client.ListSessions(cmd.Context(), config.UserID)
			if err != nil {
				return err
			}
			cli.Table(os.Stdout, sessionRows(chats, time.Now()))
			return nil
		},
	}
}

func newDeleteCmd(config *configuration.Config, gatewayOpts *gateway.Opts) *cobra.Command {
	var opts struct {
		Yes bool
	}
	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			if !opts.Yes && !cli.QueryUser(fmt.Sprintf("Delete session %s?", sessionID)) {
				return nil
			}
			client := gateway.NewClient(gatewayOpts)
			if err := client.DeleteSession(cmd.Context(), sessionID, config.UserID); err != nil {
				return err
			}
			cli.Info("deleted session %s\n", sessionID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func sessionRows(chats []*types.Chat, now time.Time) [][]string {
	rows := [][]string{{"ID", "TITLE", "MODEL", "MESSAGES", "UPDATED"}}
	for _, chat := range chats {
		updated := ""
		if !chat.UpdatedAt.IsZero() {
			updated = humanize.RelTime(chat.UpdatedAt, now, "ago", "from now")
		}
		rows = append(rows, []string{
			chat.ID,
			chat.Title,
			chat.Model,
			strconv.Itoa(len(chat.Messages)),
			updated,
		})
	}
	return rows
}
