// Package initcmder provides the init command for initializing a local
// .chatrelay directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

const (
	dirName    = ".chatrelay"
	configFile = "config.toml"
	dbFile     = "chatrelay.db"
)

const initLongDesc string = `Initialize a new .chatrelay/ directory in the current working directory.

Creates a local .chatrelay/ directory that takes precedence over the default
~/.chatrelay/ directory, and writes a config.toml holding the default
settings. An existing config.toml is left untouched.

With --sqlite the new config stores exchanges in .chatrelay/chatrelay.db
instead of in memory.

Examples:
  chatrelay init
  chatrelay init --sqlite`

const initShortDesc string = "Initialize a local .chatrelay/ directory"

func NewInitCmd() *cobra.Command {
	var withSQLite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}
			return runInit(cmd.OutOrStdout(), cwd, withSQLite)
		},
	}

	cmd.Flags().BoolVar(&withSQLite, "sqlite", false, "Store exchanges in .chatrelay/chatrelay.db")

	return cmd
}

func runInit(w io.Writer, root string, withSQLite bool) error {
	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .chatrelay directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil:
		fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading config: %w", err)
	}

	cfg := config.NewDefaultConfig()
	if withSQLite {
		cfg.Storage.SQLitePath = filepath.Join(dir, dbFile)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized %s\n", cliui.SuccessMark, cliui.ValueStyle.Render(dir))
	fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render("Set the bot with: chatrelay config set upstream.bot_id <id>"))
	return nil
}
