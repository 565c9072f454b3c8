package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/wcpos/siteconnect/internal/cmd/base"
	"github.com/wcpos/siteconnect/internal/cmd/commands/connect"
	"github.com/wcpos/siteconnect/internal/cmd/commands/migrate"
	"github.com/wcpos/siteconnect/internal/cmd/commands/profiles"
	"github.com/wcpos/siteconnect/internal/cmd/commands/version"
)

// Commands returns the CLI command factories.
func Commands(log hclog.Logger, ui cli.Ui) map[string]cli.CommandFactory {
	b := base.NewCommand(log, ui)

	return map[string]cli.CommandFactory{
		"connect": func() (cli.Command, error) {
			return &connect.Command{Command: b}, nil
		},
		"migrate": func() (cli.Command, error) {
			return &migrate.Command{Command: b}, nil
		},
		"profiles": func() (cli.Command, error) {
			return &profiles.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
