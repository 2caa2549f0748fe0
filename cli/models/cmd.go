// Package models implements the commands inspecting the model catalog.
package models

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/malonaz/madlen/internal/cli"
	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/types"
)

// NewCmd instantiates and returns the models command.
func NewCmd(gatewayOpts *gateway.Opts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the models offered by the backend",
	}
	cmd.AddCommand(newListCmd(gatewayOpts))
	cmd.AddCommand(newSupportsVisionCmd(gatewayOpts))
	return cmd
}

func newListCmd(gatewayOpts *gateway.Opts) *cobra.Command {
	var opts struct {
		Vision bool
	}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the models",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := gateway.NewClient(gatewayOpts)
			var models []*types.Model
			var err error
			if opts.Vision {
				models, err = client.ListVisionModels(cmd.Context())
			} else {
				models, err = client.ListModels(cmd.Context())
			}
			if err != nil {
				return err
			}
			cli.Table(os.Stdout, modelRows(models))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Vision, "vision", false, "Only list models able to process images")
	return cmd
}

func newSupportsVisionCmd(gatewayOpts *gateway.Opts) *cobra.Command {
	return &cobra.Command{
		Use:   "supports-vision <model-id>",
		Short: "Report whether a model can process images",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			client := gateway.NewClient(gatewayOpts)
			if client.SupportsVision(cmd.Context(), args[0]) {
				cli.Info("%s supports images\n", args[0])
				return
			}
			cli.Info("%s does not support images\n", args[0])
		},
	}
}

func modelRows(models []*types.Model) [][]string {
	rows := [][]string{{"ID", "NAME", "FREE", "VISION", "DESCRIPTION"}}
	for _, model := range models {
		rows = append(rows, []string{
			model.ID,
			model.Label(),
			strconv.FormatBool(model.Free),
			strconv.FormatBool(model.SupportsVision),
			model.Description,
		})
	}
	return rows
}
