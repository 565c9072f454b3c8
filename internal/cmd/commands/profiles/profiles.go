package profiles

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wcpos/siteconnect/internal/cmd/base"
	"github.com/wcpos/siteconnect/pkg/database"
	"github.com/wcpos/siteconnect/pkg/models"
	"github.com/wcpos/siteconnect/pkg/profiles"
)

type Command struct {
	*base.Command

	flagConfig string
	flagFormat string
	flagDelete string
}

func (c *Command) Synopsis() string {
	return "List or delete saved connection profiles"
}

func (c *Command) Help() string {
	return `Usage: siteconnect profiles [options]

  List the saved connection profiles, most recently connected first.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("profiles", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to the config file",
	)
	f.StringVar(
		&c.flagFormat, "format", "table", "Output format: table, json or yaml",
	)
	f.StringVar(
		&c.flagDelete, "delete", "", "Delete the profile with this site uuid",
	)

	return f
}

// profileView is the rendered form of a profile.
type profileView struct {
	UUID            string     `json:"uuid" yaml:"uuid"`
	Name            string     `json:"name" yaml:"name"`
	URL             string     `json:"url" yaml:"url"`
	WPAPIURL        string     `json:"wp_api_url" yaml:"wp_api_url"`
	WCAPIURL        string     `json:"wc_api_url" yaml:"wc_api_url"`
	WCPOSAPIURL     string     `json:"wcpos_api_url" yaml:"wcpos_api_url"`
	WCPOSLoginURL   string     `json:"wcpos_login_url" yaml:"wcpos_login_url"`
	WCVersion       string     `json:"wc_version,omitempty" yaml:"wc_version,omitempty"`
	WCPOSVersion    string     `json:"wcpos_version,omitempty" yaml:"wcpos_version,omitempty"`
	WCPOSProVersion string     `json:"wcpos_pro_version,omitempty" yaml:"wcpos_pro_version,omitempty"`
	UseJWTAsParam   bool       `json:"use_jwt_as_param" yaml:"use_jwt_as_param"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty" yaml:"last_connected_at,omitempty"`
}

func newProfileView(p models.ConnectionProfile) profileView {
	return profileView{
		UUID:            p.UUID,
		Name:            p.Name,
		URL:             p.URL,
		WPAPIURL:        p.WPAPIURL,
		WCAPIURL:        p.WCAPIURL,
		WCPOSAPIURL:     p.WCPOSAPIURL,
		WCPOSLoginURL:   p.WCPOSLoginURL,
		WCVersion:       p.WCVersion,
		WCPOSVersion:    p.WCPOSVersion,
		WCPOSProVersion: p.WCPOSProVersion,
		UseJWTAsParam:   p.UseJWTAsParam,
		LastConnectedAt: p.LastConnectedAt,
	}
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	switch c.flagFormat {
	case "table", "json", "yaml":
	default:
		ui.Error(fmt.Sprintf("unknown format %q (supported: table, json, yaml)", c.flagFormat))
		return 1
	}

	cfg, err := c.LoadConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config: %v", err))
		return 1
	}

	ctx := context.Background()
	db, err := c.OpenDatabase(ctx, cfg)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("error closing database", "error", err)
		}
	}()

	store := profiles.NewStore(db, logger)

	if c.flagDelete != "" {
		deleted, err := store.Delete(ctx, c.flagDelete)
		if err != nil {
			ui.Error(fmt.Sprintf("error deleting profile: %v", err))
			return 1
		}
		if !deleted {
			ui.Error(fmt.Sprintf("no profile with uuid %q", c.flagDelete))
			return 1
		}
		ui.Info(fmt.Sprintf("Deleted profile %s", c.flagDelete))
		return 0
	}

	ps, err := store.List(ctx)
	if err != nil {
		ui.Error(fmt.Sprintf("error listing profiles: %v", err))
		return 1
	}

	views := make([]profileView, 0, len(ps))
	for _, p := range ps {
		views = append(views, newProfileView(p))
	}

	out, err := render(views, c.flagFormat)
	if err != nil {
		ui.Error(fmt.Sprintf("error rendering profiles: %v", err))
		return 1
	}
	ui.Output(out)
	return 0
}

func render(views []profileView, format string) (string, error) {
	switch format {
	case "json":
		b, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil

	case "yaml":
		b, err := yaml.Marshal(views)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\n"), nil

	default:
		if len(views) == 0 {
			return "No saved profiles.", nil
		}
		var b strings.Builder
		w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tURL\tUUID\tTOKEN\tLAST CONNECTED")
		for _, v := range views {
			token := "header"
			if v.UseJWTAsParam {
				token = "param"
			}
			last := "-"
			if v.LastConnectedAt != nil {
				last = v.LastConnectedAt.Local().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.Name, v.URL, v.UUID, token, last)
		}
		if err := w.Flush(); err != nil {
			return "", err
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}
}
