package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/malonaz/madlen/cli/chat"
	"github.com/malonaz/madlen/cli/models"
	"github.com/malonaz/madlen/cli/sessions"
	"github.com/malonaz/madlen/internal/configuration"
	"github.com/malonaz/madlen/internal/debug"
	"github.com/malonaz/madlen/internal/gateway"
)

const configFilepath = "~/.config/madlen/config.json"

var rootCmd = &cobra.Command{
	Use:          "madlen",
	Short:        "A terminal client for the madlen chat backend",
	Version:      "1.0",
	SilenceUsage: true,
}

func main() {
	config, err := configuration.Parse(configFilepath)
	if err != nil {
		panic(err)
	}
	if err := debug.Init(config.DebugLog); err != nil {
		panic(err)
	}
	debug.GetLogger().Info("starting", "api_url", config.APIURL, "user_id", config.UserID)

	gatewayOpts := gateway.GetOpts(rootCmd, config.APIURL)
	rootCmd.AddCommand(chat.NewCmd(config, gatewayOpts))
	rootCmd.AddCommand(models.NewCmd(gatewayOpts))
	rootCmd.AddCommand(sessions.NewCmd(config, gatewayOpts))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
