package main

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-account-cache/internal/config"
)

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "accountd",
		Short:         "User account service with response caching",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a config file")

	cmd.AddCommand(newServeCommand(opts), newCacheCommand(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}
