package cli

import (
	"context"
	"fmt"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"menusync/internal/services"
)

const dirFlag = "dir"

func newExportFlags() map[string]cobraflags.Flag {
	return withFlags(envFlags(false), map[string]cobraflags.Flag{
		dirFlag: &cobraflags.StringFlag{
			Name:  dirFlag,
			Value: "",
			Usage: "Output directory (defaults to DATA_DIR)",
		},
	})
}

func newExportCommand() *cobra.Command {
	flags := newExportFlags()
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write category and item name -> id maps from the local cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return exportCommand(cmd, flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func exportCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		dir := flags[dirFlag].GetString()
		if dir == "" {
			dir = a.cfg.DataDir
		}
		paths, err := services.NewExportService(a.cache).WriteJSON(ctx, env, dir)
		if err != nil {
			return err
		}
		if flags[jsonFlag].GetBool() {
			return printJSON(cmd.OutOrStdout(), paths)
		}
		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
		}
		return nil
	})
}
