package version

import (
	"github.com/wcpos/siteconnect/internal/cmd/base"
	"github.com/wcpos/siteconnect/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: siteconnect version

  Print the version of siteconnect.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.FullVersion())
	return 0
}
