// Package cli wires the menusync commands onto cobra.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"
)

const (
	envFlag  = "env"
	yesFlag  = "yes"
	jsonFlag = "json"
)

// envFlags returns the flags shared by every per-environment command.
func envFlags(mutating bool) map[string]cobraflags.Flag {
	m := map[string]cobraflags.Flag{
		envFlag: &cobraflags.StringFlag{
			Name:  envFlag,
			Value: "",
			Usage: "Target environment (sandbox, production); defaults to MENUSYNC_ENVIRONMENT",
		},
		jsonFlag: &cobraflags.BoolFlag{
			Name:  jsonFlag,
			Value: false,
			Usage: "Print the result as JSON",
		},
	}
	if mutating {
		m[yesFlag] = &cobraflags.BoolFlag{
			Name:  yesFlag,
			Value: false,
			Usage: "Confirm changes against production",
		}
	}
	return m
}

func withFlags(flags map[string]cobraflags.Flag, extra map[string]cobraflags.Flag) map[string]cobraflags.Flag {
	for k, v := range extra {
		flags[k] = v
	}
	return flags
}

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "menusync",
		Short: "Idempotent Square catalog sync for sandbox and production",
		Long: `menusync reconciles a restaurant menu manifest against a Square catalog.

Every write first checks that no category or item name is duplicated remotely
and only creates entities that do not exist yet, so repeated runs are safe.

Examples:
  menusync setup --env sandbox --manifest configs/menu.yaml
  menusync duplicates --env production
  menusync verify --env sandbox --manifest configs/menu.yaml
  menusync cleanup --env production --yes
  menusync serve`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newSetupCommand(),
		newDuplicatesCommand(),
		newCleanupCommand(),
		newExportCommand(),
		newSummaryCommand(),
		newLocationsCommand(),
		newImagesCommand(),
		newFixCategoriesCommand(),
		newVerifyCommand(),
		newServeCommand(),
		newEnvCommand(),
	)
	return root
}

func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// run opens the app for one command invocation and closes it afterwards.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.close()
	return fn(cmd.Context(), a)
}
