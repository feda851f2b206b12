package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"menusync/internal/domain"
	applog "menusync/internal/log"
	"menusync/internal/manifest"
)

const maxAgeFlag = "max-age"

func newImagesProcessFlags() map[string]cobraflags.Flag {
	return withFlags(envFlags(true), map[string]cobraflags.Flag{
		manifestFlag: &cobraflags.StringFlag{
			Name:  manifestFlag,
			Value: "configs/menu.yaml",
			Usage: "Menu manifest (YAML) with image_url entries",
		},
	})
}

func newImagesPruneFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		maxAgeFlag: &cobraflags.StringFlag{
			Name:  maxAgeFlag,
			Value: "720h",
			Usage: "Remove downloaded files older than this duration",
		},
	}
}

func newImagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Attach item images and manage the download directory",
	}
	processFlags := newImagesProcessFlags()
	process := &cobra.Command{
		Use:   "process",
		Short: "Download, upload and attach manifest images to existing items",
		Long: `Items must already exist in the local cache (run setup first). Images
already attached to an item are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return imagesProcessCommand(cmd, processFlags)
		},
	}
	cobraflags.RegisterMap(process, processFlags)
	pruneFlags := newImagesPruneFlags()
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete old downloaded image files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return imagesPruneCommand(cmd, pruneFlags)
		},
	}
	cobraflags.RegisterMap(prune, pruneFlags)
	cmd.AddCommand(process, prune)
	return cmd
}

type imageResult struct {
	Item    string `json:"item"`
	ImageID string `json:"image_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func imagesProcessCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	return run(cmd, func(ctx context.Context, a *app) error {
		env, err := a.env(flags[envFlag].GetString())
		if err != nil {
			return err
		}
		if err := guardProduction(env, flags[yesFlag].GetBool()); err != nil {
			return err
		}
		m, err := manifest.Load(flags[manifestFlag].GetString())
		if err != nil {
			return err
		}
		svc := a.images()
		var results []imageResult
		failed := 0
		for _, it := range m.Items {
			if it.ImageURL == "" {
				continue
			}
			id, ok, err := a.cache.Get(ctx, env, domain.EntityItem, it.Name)
			if err != nil {
				return err
			}
			if !ok {
				applog.L().Warn().Str("env", env.String()).Str("name", it.Name).Msg("item not cached; run setup first")
				results = append(results, imageResult{Item: it.Name, Error: "not in local cache"})
				failed++
				continue
			}
			imgID, err := svc.Process(ctx, env, it.Name, id, it.ImageURL)
			if err != nil {
				applog.Error(nil, "images.process", err, map[string]any{"env": env, "name": it.Name})
				results = append(results, imageResult{Item: it.Name, Error: err.Error()})
				failed++
				continue
			}
			results = append(results, imageResult{Item: it.Name, ImageID: imgID})
		}
		if flags[jsonFlag].GetBool() {
			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				if r.Error != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-30s error: %s\n", r.Item, r.Error)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-30s %s\n", r.Item, r.ImageID)
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(results))
		}
		return nil
	})
}

func imagesPruneCommand(cmd *cobra.Command, flags map[string]cobraflags.Flag) error {
	maxAge, err := time.ParseDuration(flags[maxAgeFlag].GetString())
	if err != nil || maxAge <= 0 {
		return fmt.Errorf("invalid --%s %q", maxAgeFlag, flags[maxAgeFlag].GetString())
	}
	return run(cmd, func(_ context.Context, a *app) error {
		n, err := a.images().PruneLocal(maxAge)
		if err != nil {
			return err
		}
		applog.Audit(nil, "images.prune", map[string]any{"dir": a.cfg.ImagesDir, "removed": n})
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d files from %s\n", n, a.cfg.ImagesDir)
		return nil
	})
}
