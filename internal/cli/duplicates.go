package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"menusync/internal/errs"
)

func newDuplicatesCommand() *cobra.Command {
	flags := envFlags(false)
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "List category and item names that exist more than once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return duplicatesCommand(cmd, flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func duplicatesCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		d, err := a.duplicates().FindDuplicates(ctx, env)
		if err != nil {
			return err
		}
		if flags[jsonFlag].GetBool() {
			return printJSON(cmd.OutOrStdout(), d)
		}
		w := cmd.OutOrStdout()
		if d.Empty() {
			fmt.Fprintf(w, "no duplicates in %s\n", env)
			return nil
		}
		fmt.Fprintf(w, "%d duplicated names in %s\n", d.Count(), env)
		writeGroups(w, "category", d.Categories)
		writeGroups(w, "item", d.Items)
		return nil
	})
}

func writeGroups(w io.Writer, kind string, groups map[string][]string) {
	names := make([]string, 0, len(groups))
	for n := range groups {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-8s %-30s %s\n", kind, n, strings.Join(groups[n], " "))
	}
}

func newCleanupCommand() *cobra.Command {
	flags := envFlags(true)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete duplicates, keeping the highest version of each name",
		Long: `For every duplicated name, keeps the entity with the highest version
(smallest id on a tie) and deletes the rest in one batch. The local cache is
re-pointed at the kept entity.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupCommand(cmd, flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func cleanupCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		if err := guardProduction(env, flags[yesFlag].GetBool()); err != nil {
			return err
		}
		res, cerr := a.duplicates().Cleanup(ctx, env)
		// a partial cleanup still reports the groups it touched
		if cerr != nil && (!errs.IsBackend(cerr) || len(res.Groups) == 0) {
			return cerr
		}
		if flags[jsonFlag].GetBool() {
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			return cerr
		}
		w := cmd.OutOrStdout()
		if len(res.Groups) == 0 && cerr == nil {
			fmt.Fprintf(w, "nothing to clean in %s\n", env)
			return nil
		}
		for _, g := range res.Groups {
			fmt.Fprintf(w, "  %-9s %-30s kept %s deleted %d", g.Type, g.Name, g.Kept, len(g.Deleted))
			if len(g.Failed) > 0 {
				fmt.Fprintf(w, " failed %s", strings.Join(g.Failed, " "))
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "deleted %d in %s\n", res.DeletedCount(), env)
		return cerr
	})
}
