/*
main.go - Application entry point

PURPOSE:
  The checkin binary. Every subcommand is a separate "page" acting on the
  same persisted state: one process can serve the HTTP API while another
  checks in from the terminal, and the server picks the change up.

COMMANDS:
  serve              HTTP API, SSE stream, file watcher, day rollover
  status             Level, daily tasks, long-term tasks, badges, log
  view <id>          Record a shop view
  favorite <id>      Toggle a favorite
  checkin <id>       Check in at a shop (once per shop per day)
  shops [query]      Search the catalog, or rank by distance (--nearby)

CONFIGURATION:
  Built-in defaults, then --config YAML, then CHECKIN_* environment
  variables, then flags. See config/config.go.

EXAMPLES:
  # Serve with a JSON file store shared with other invocations
  checkin serve --store json --store-path ./data/checkin.json

  # Check in from another terminal against the same file
  checkin checkin wanaka-honten --store json --store-path ./data/checkin.json

SEE ALSO:
  - app.go: Component wiring
  - serve.go: Server startup and shutdown
  - actions.go: Page subcommands
*/
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/checkin-engine/config"
	"github.com/warp/checkin-engine/logging"
)

// cli holds global flags and what PersistentPreRunE builds from them.
type cli struct {
	configPath  string
	verbose     bool
	backend     string
	storePath   string
	catalogPath string
	rulesPath   string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "checkin",
		Short: "Check-in progression engine for a shop map",
		Long: `checkin tracks points, levels, daily tasks, long-term rewards and
badges earned by viewing, favoriting and checking in at shops.

Run "checkin serve" for the HTTP API, or use the page subcommands
directly against the same store.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&c.backend, "store", "", "Storage backend: sqlite, json or memory")
	flags.StringVar(&c.storePath, "store-path", "", "Database or JSON file path")
	flags.StringVar(&c.catalogPath, "catalog", "", "Shop catalog YAML")
	flags.StringVar(&c.rulesPath, "rules", "", "Rules file (YAML or JSON); built-in rules when empty")

	root.AddCommand(
		newServeCmd(c),
		newStatusCmd(c),
		newViewCmd(c),
		newFavoriteCmd(c),
		newCheckinCmd(c),
		newShopsCmd(c),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Storage.Backend = c.backend
	}
	if flags.Changed("store-path") {
		cfg.Storage.Path = c.storePath
	}
	if flags.Changed("catalog") {
		cfg.Catalog.Path = c.catalogPath
	}
	if flags.Changed("rules") {
		cfg.Rules.Path = c.rulesPath
	}
	if flags.Changed("addr") {
		addr, _ := flags.GetString("addr")
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, c.verbose)
	if err != nil {
		return err
	}
	c.logger = logger
	return nil
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
