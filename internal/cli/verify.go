package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"menusync/internal/manifest"
	"menusync/internal/services"
)

func newVerifyCommand() *cobra.Command {
	flags := withFlags(envFlags(false), map[string]cobraflags.Flag{
		manifestFlag: &cobraflags.StringFlag{
			Name:  manifestFlag,
			Value: "configs/menu.yaml",
			Usage: "Menu manifest (YAML) to check against",
		},
	})
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check credentials and that every manifest entry exists exactly once",
		Long: `Lists locations to confirm the access token works, then reports missing
stores, categories and items, items in the wrong category, and duplicated
names. Read only; exits non-zero when anything is off.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return verifyCommand(cmd, flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func verifyCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		m, err := manifest.Load(flags[manifestFlag].GetString())
		if err != nil {
			return err
		}
		rep, err := services.NewVerifyService(a.backends, a.cache).Verify(ctx, env, m)
		if err != nil {
			return err
		}
		if flags[jsonFlag].GetBool() {
			if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
		} else {
			writeVerify(cmd.OutOrStdout(), rep)
		}
		if !rep.OK() {
			return fmt.Errorf("verification failed in %s", env)
		}
		return nil
	})
}

func writeVerify(w io.Writer, rep services.VerifyReport) {
	fmt.Fprintf(w, "%s: token ok, %d locations, %d categories, %d items\n",
		rep.Environment, rep.Locations, rep.Categories, rep.Items)
	writeMissing(w, "stores", rep.MissingStores)
	writeMissing(w, "categories", rep.MissingCategories)
	writeMissing(w, "items", rep.MissingItems)
	if len(rep.WrongCategory) > 0 {
		names := make([]string, 0, len(rep.WrongCategory))
		for n := range rep.WrongCategory {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(w, "  wrong category: %s (want %s)\n", n, rep.WrongCategory[n])
		}
	}
	if !rep.Duplicates.Empty() {
		fmt.Fprintf(w, "  %d duplicated names\n", rep.Duplicates.Count())
		writeGroups(w, "category", rep.Duplicates.Categories)
		writeGroups(w, "item", rep.Duplicates.Items)
	}
	if rep.OK() {
		fmt.Fprintln(w, "verify passed")
	}
}

func writeMissing(w io.Writer, kind string, names []string) {
	if len(names) > 0 {
		fmt.Fprintf(w, "  missing %s: %s\n", kind, strings.Join(names, ", "))
	}
}
