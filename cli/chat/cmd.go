// Package chat implements the chat command.
package chat

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/malonaz/madlen/cli/tui"
	chatstate "github.com/malonaz/madlen/internal/chat"
	"github.com/malonaz/madlen/internal/configuration"
	"github.com/malonaz/madlen/internal/file"
	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/history"
	"github.com/malonaz/madlen/internal/image"
)

// NewCmd instantiates and returns the chat command.
func NewCmd(config *configuration.Config, gatewayOpts *gateway.Opts) *cobra.Command {
	var opts struct {
		Model  string
		Stream bool
		Plain  bool
	}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the models of the backend",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.Model == "" {
				opts.Model = config.DefaultModel
			}
			stream := config.Stream
			if cmd.Flags().Changed("stream") {
				stream = opts.Stream
			}

			client := gateway.NewClient(gatewayOpts)
			var model *tui.Model
			state := chatstate.New(client, &chatstate.Opts{
				UserID:       config.UserID,
				DefaultModel: opts.Model,
				Timeout:      config.Timeout(),
				OnChange: func() {
					if model != nil {
						model.Notify()
					}
				},
			})
			defer state.Close()

			if opts.Plain {
				historyFile := filepath.Join(filepath.Dir(config.HistoryDatabase), "plain_history")
				if err := file.CreateParentDirectory(historyFile); err != nil {
					return err
				}
				return runPlain(ctx, state, historyFile, stream)
			}

			h, err := history.New(config.HistoryDatabase)
			if err != nil {
				return err
			}
			defer h.Close()

			previews := image.NewPreviews(os.TempDir())
			tuiOpts := &tui.Opts{
				Stream:         stream,
				StarterPrompts: config.StarterPrompts,
			}
			m, err := tui.New(ctx, state, h, previews, tuiOpts)
			if err != nil {
				return err
			}
			defer m.Close()

			// Create the Bubble Tea program
			p := tea.NewProgram(
				m,
				tea.WithAltScreen(),
				tea.WithContext(ctx),
				tea.WithFilter(m.Filter()),
				tea.WithMouseCellMotion(),
			)

			// Set the program reference for async message sending
			m.SetProgram(p)
			model = m

			if _, err := p.Run(); err != nil {
				return fmt.Errorf("error running chat: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Model selected on startup")
	cmd.Flags().BoolVarP(&opts.Stream, "stream", "s", false, "Stream replies as they are generated")
	cmd.Flags().BoolVar(&opts.Plain, "plain", false, "Use a line based prompt instead of the full screen interface")
	return cmd
}
