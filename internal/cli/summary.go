package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"menusync/internal/backend/square"
	"menusync/internal/domain"
)

func newSummaryCommand() *cobra.Command {
	flags := envFlags(false)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show local cache row counts per environment",
		Long:  "Without --env, shows every environment.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return summaryCommand(cmd, flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func summaryCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		var list []domain.Summary
		if f := flags[envFlag].GetString(); f != "" {
			env, err := domain.ParseEnvironment(f)
			if err != nil {
				return err
			}
			s, err := a.cache.Summary(ctx, env)
			if err != nil {
				return err
			}
			list = []domain.Summary{s}
		} else {
			var err error
			if list, err = a.cache.SummaryAll(ctx); err != nil {
				return err
			}
		}
		if flags[jsonFlag].GetBool() {
			return printJSON(cmd.OutOrStdout(), list)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENV\tLOCATIONS\tCATEGORIES\tITEMS\tVARIATIONS\tIMAGES\tSYNC LOG")
		for _, s := range list {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
				s.Environment, s.Locations, s.Categories, s.Items, s.Variations, s.Images, s.SyncLog)
		}
		return tw.Flush()
	})
}

func newEnvCommand() *cobra.Command {
	flags := envFlags(false)
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the resolved configuration for an environment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return envCommand(cmd, flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func envCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(_ context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		info := map[string]string{
			"environment": env.String(),
			"default":     a.cfg.Default.String(),
			"token":       a.cfg.MaskedToken(env),
			"location":    a.cfg.LocationID(env),
			"base_url":    a.cfg.BaseURL(env),
			"dashboard":   a.cfg.DashboardURL(env, ""),
			"db":          a.cfg.DBDSN,
		}
		if info["base_url"] == "" {
			info["base_url"] = square.BaseURL(env)
		}
		if flags[jsonFlag].GetBool() {
			return printJSON(cmd.OutOrStdout(), info)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, k := range []string{"environment", "default", "token", "location", "base_url", "dashboard", "db"} {
			fmt.Fprintf(tw, "%s\t%s\n", k, info[k])
		}
		return tw.Flush()
	})
}
