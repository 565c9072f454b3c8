package cmd

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcpos/siteconnect/internal/version"
)

func TestCommandsRegistered(t *testing.T) {
	commands := Commands(hclog.NewNullLogger(), cli.NewMockUi())

	for _, name := range []string{"connect", "migrate", "profiles", "version"} {
		factory, ok := commands[name]
		require.True(t, ok, name)

		c, err := factory()
		require.NoError(t, err)
		assert.NotEmpty(t, c.Synopsis(), name)
		assert.Contains(t, c.Help(), "Usage: siteconnect "+name)
	}
}

func TestVersionCommand(t *testing.T) {
	ui := cli.NewMockUi()
	c, err := Commands(hclog.NewNullLogger(), ui)["version"]()
	require.NoError(t, err)

	assert.Equal(t, 0, c.Run(nil))
	assert.Contains(t, ui.OutputWriter.String(), version.Version)
}
