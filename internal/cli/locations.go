package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"menusync/internal/domain"
	"menusync/internal/services"
)

func newLocationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Mirror and list store locations",
	}
	syncFlags := envFlags(false)
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch remote locations into the local cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return locationsSyncCommand(cmd, syncFlags)
		},
	}
	cobraflags.RegisterMap(syncCmd, syncFlags)
	listFlags := envFlags(false)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List cached locations ordered by store number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return locationsListCommand(cmd, listFlags)
		},
	}
	cobraflags.RegisterMap(listCmd, listFlags)
	cmd.AddCommand(syncCmd, listCmd)
	return cmd
}

func locationsSyncCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		locs, err := services.NewLocationService(a.backends, a.cache).Sync(ctx, env)
		if err != nil {
			return err
		}
		if flags[jsonFlag].GetBool() {
			return printJSON(cmd.OutOrStdout(), locs)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "synced %d locations in %s\n", len(locs), env)
		return writeLocations(cmd, locs)
	})
}

func locationsListCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		locs, err := a.cache.Locations.List(ctx, env)
		if err != nil {
			return err
		}
		if flags[jsonFlag].GetBool() {
			return printJSON(cmd.OutOrStdout(), locs)
		}
		return writeLocations(cmd, locs)
	})
}

func writeLocations(cmd *cobra.Command, locs []domain.Location) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STORE\tNAME\tID\tPHONE\tADDRESS")
	for _, l := range locs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.StoreNumber, l.Name, l.RemoteID, l.Phone, l.Address)
	}
	return tw.Flush()
}
