package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"menusync/internal/manifest"
	"menusync/internal/services"
)

const (
	itemFlag     = "item"
	categoryFlag = "category"
)

func newFixFlags() map[string]cobraflags.Flag {
	return withFlags(envFlags(true), map[string]cobraflags.Flag{
		manifestFlag: &cobraflags.StringFlag{
			Name:  manifestFlag,
			Value: "",
			Usage: "Reassign every manifest item to its manifest category",
		},
		itemFlag: &cobraflags.StringFlag{
			Name:  itemFlag,
			Value: "",
			Usage: "Single item name to move (with --category)",
		},
		categoryFlag: &cobraflags.StringFlag{
			Name:  categoryFlag,
			Value: "",
			Usage: "Target category name for --item",
		},
	})
}

func newFixCategoriesCommand() *cobra.Command {
	flags := newFixFlags()
	cmd := &cobra.Command{
		Use:   "fix-categories",
		Short: "Move existing items to the right category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return fixCategoriesCommand(cmd, flags)
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

// assignments builds item -> category from either a manifest or --item/--category.
func assignments(flags map[string]cobraflags.Flag) (map[string]string, error) {
	out := map[string]string{}
	if path := flags[manifestFlag].GetString(); path != "" {
		m, err := manifest.Load(path)
		if err != nil {
			return nil, err
		}
		for _, it := range m.Items {
			if it.Category != "" {
				out[it.Name] = it.Category
			}
		}
	}
	item := strings.TrimSpace(flags[itemFlag].GetString())
	category := strings.TrimSpace(flags[categoryFlag].GetString())
	if (item == "") != (category == "") {
		return nil, fmt.Errorf("--%s and --%s go together", itemFlag, categoryFlag)
	}
	if item != "" {
		out[item] = category
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("nothing to fix: pass --%s or --%s/--%s", manifestFlag, itemFlag, categoryFlag)
	}
	return out, nil
}

func fixCategoriesCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	set, err := assignments(flags)
	if err != nil {
		return err
	}
	return run(cmd, func(ctx context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		if err := guardProduction(env, flags[yesFlag].GetBool()); err != nil {
			return err
		}
		rep, err := services.NewCategoryFixService(a.backends, a.cache).Reassign(ctx, env, set)
		if err != nil {
			return err
		}
		if flags[jsonFlag].GetBool() {
			return printJSON(cmd.OutOrStdout(), rep)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %d, unchanged %d in %s\n", len(rep.Updated), len(rep.Unchanged), env)
		for _, n := range rep.Updated {
			fmt.Fprintf(cmd.OutOrStdout(), "  moved %s -> %s\n", n, set[n])
		}
		return nil
	})
}
