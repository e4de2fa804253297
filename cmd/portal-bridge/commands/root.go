package commands

import (
	"context"
	"fmt"
	"os"

	"portalbridge/internal/components/telemetry"
	"portalbridge/internal/configutil"
	"portalbridge/internal/extract"
	"portalbridge/internal/normalize"
	"portalbridge/internal/portal"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "portal-bridge",
	Short: "portal-bridge exposes the school portal to AI assistants over stdio.",
}

var configPath *string

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "Path to the configuration file.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Config is the full recognized configuration surface.
type Config struct {
	BaseUrl       string `json:"baseUrl"`
	ServerName    string `json:"serverName"`
	ServerVersion string `json:"serverVersion"`
	UserAgent     string `json:"userAgent"`
	// Quiet suppresses logs below warning; set this when the hosting
	// assistant treats stderr noise as a failure.
	Quiet bool `json:"quiet"`
	// GridContainerIndex overrides which presentation container the DOM
	// strategy treats as the data grid.
	GridContainerIndex *int `json:"gridContainerIndex"`
	// InclusiveAllDayEnd disables the exclusive-end-date correction for
	// all-day calendar events.
	InclusiveAllDayEnd bool `json:"inclusiveAllDayEnd"`
	// Cookies preloads a session from configuration, useful for scripted
	// runs against a captured session.
	Cookies string `json:"cookies"`
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "failed to read config:", err)
		os.Exit(1)
	}
	return cfg
}

func telemetryAPI() telemetry.API {
	return telemetry.SlogAPI{}
}

func buildPortal(cfg Config) *portal.Portal {
	telemetry.InitSlog(cfg.Quiet)
	tel := telemetryAPI()

	extractOpts := extract.DefaultOptions()
	if cfg.GridContainerIndex != nil {
		extractOpts.Dom.GridContainerIndex = *cfg.GridContainerIndex
	}
	calendarCfg := normalize.DefaultCalendarConfig()
	if cfg.InclusiveAllDayEnd {
		calendarCfg.ExclusiveAllDayEnd = false
	}

	p, err := portal.New(portal.Options{
		BaseUrl:   cfg.BaseUrl,
		UserAgent: cfg.UserAgent,
		Extract:   &extractOpts,
		Calendar:  &calendarCfg,
	}, tel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize portal client:", err)
		os.Exit(1)
	}

	if cfg.Cookies != "" {
		p.SetSessionCookies(cfg.Cookies)
	}
	return p
}
