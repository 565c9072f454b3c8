package connect

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pkg/browser"

	"github.com/wcpos/siteconnect/internal/cmd/base"
	"github.com/wcpos/siteconnect/pkg/database"
	"github.com/wcpos/siteconnect/pkg/httpclient"
	"github.com/wcpos/siteconnect/pkg/profiles"
	"github.com/wcpos/siteconnect/pkg/siteconnect"
)

// openURL is replaced in tests.
var openURL = browser.OpenURL

type Command struct {
	*base.Command

	flagConfig    string
	flagToken     string
	flagOpenLogin bool
}

func (c *Command) Synopsis() string {
	return "Connect to a WooCommerce POS site and save its profile"
}

func (c *Command) Help() string {
	return `Usage: siteconnect connect [options] <site-address>

  Discover the site's REST API, check that WooCommerce and WooCommerce POS
  are active, test how authorization must be sent, and save the result as a
  connection profile. Connecting to a site that is already saved updates its
  profile.

  The address may be given with or without a scheme. HTTPS is always used.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("connect", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"[SITECONNECT_CONFIG] Path to the config file",
	)
	f.StringVar(
		&c.flagToken, "token", "",
		"[SITECONNECT_PROBE_TOKEN] Bearer token used to test authorization; a throwaway token is used when empty",
	)
	f.BoolVar(
		&c.flagOpenLogin, "open-login", false,
		"Open the site's POS login page in a browser after connecting",
	)

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if f.NArg() != 1 {
		ui.Error("exactly one site address is required")
		ui.Error(c.Help())
		return 1
	}
	address := f.Arg(0)

	configPath := c.flagConfig
	if val, ok := os.LookupEnv("SITECONNECT_CONFIG"); ok && configPath == "" {
		configPath = val
	}
	cfg, err := c.LoadConfig(configPath)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config: %v", err))
		return 1
	}

	token := c.flagToken
	if token == "" {
		token = cfg.POS.ProbeToken
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

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

	client := httpclient.New(cfg.HTTPClientConfig())
	messages := siteconnect.DefaultMessages()

	validator, err := siteconnect.NewValidator(siteconnect.ValidatorConfig{
		HTTPClient:       client,
		Messages:         messages,
		Logger:           logger,
		MinPluginVersion: cfg.POS.MinPluginVersion,
	})
	if err != nil {
		ui.Error(fmt.Sprintf("error creating validator: %v", err))
		return 1
	}

	o, err := siteconnect.NewOrchestrator(siteconnect.OrchestratorConfig{
		Store:      profiles.NewStore(db, logger),
		HTTPClient: client,
		Validator:  validator,
		Prober: siteconnect.NewProber(siteconnect.ProberConfig{
			HTTPClient: client,
			Messages:   messages,
			Logger:     logger,
			Timeout:    cfg.ProbeTimeout(),
		}),
		Messages: messages,
		Logger:   logger,
		Token:    token,
		OnTransition: func(s siteconnect.State) {
			if s.Loading() {
				ui.Output(fmt.Sprintf("[%d/%d] %s...", s.Step, s.TotalSteps, s.Message))
			}
		},
	})
	if err != nil {
		ui.Error(fmt.Sprintf("error creating orchestrator: %v", err))
		return 1
	}

	profile := o.Connect(ctx, address)
	state := o.State()
	for _, w := range state.Warnings {
		ui.Warn("Warning: " + w)
	}
	if profile == nil {
		ui.Error(fmt.Sprintf("Error: %s", state.Error))
		return 1
	}

	ui.Info(state.Message)
	ui.Output(strings.Join([]string{
		fmt.Sprintf("  Site:       %s", profile.URL),
		fmt.Sprintf("  UUID:       %s", profile.UUID),
		fmt.Sprintf("  POS API:    %s", profile.WCPOSAPIURL),
		fmt.Sprintf("  Login:      %s", profile.WCPOSLoginURL),
		fmt.Sprintf("  Token mode: %s", tokenMode(profile.UseJWTAsParam)),
	}, "\n"))

	if c.flagOpenLogin {
		if err := openURL(profile.WCPOSLoginURL); err != nil {
			ui.Warn(fmt.Sprintf("Could not open browser: %v", err))
		}
	}

	return 0
}

func tokenMode(param bool) string {
	if param {
		return "query parameter"
	}
	return "authorization header"
}
