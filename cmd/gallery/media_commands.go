package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abelbrown/gallery/internal/aggregate"
	"github.com/abelbrown/gallery/internal/media"
	"github.com/abelbrown/gallery/internal/store"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest.json>",
		Short: "Import chats, attachments and projects from a JSON manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := store.ReadManifestFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(st *store.Store) error {
				n, err := st.Import(cmd.Context(), src)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new records from %s (%d in manifest)\n", n, args[0], src.Len())
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <key>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a media item by key (e.g. chat:abc123)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				item, err := resolveItem(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				if err := st.Delete(cmd.Context(), item); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", item.Key())
				return nil
			})
		},
	}
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <key> <name>",
		Short: "Set the display name of a media item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[1])
			if name == "" {
				return fmt.Errorf("name cannot be empty")
			}
			return ctx.withStore(func(st *store.Store) error {
				item, err := resolveItem(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				if err := st.Rename(cmd.Context(), item, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", item.Key(), name)
				return nil
			})
		},
	}
}

func newToggleCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <project-id>",
		Short: "Flip a video project between public and private",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimPrefix(strings.TrimSpace(args[0]), string(media.SourceProject)+":")
			return ctx.withStore(func(st *store.Store) error {
				public, err := st.ToggleVisibility(cmd.Context(), id)
				if err != nil {
					return err
				}
				state := "private"
				if public {
					state = "public"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project %s is now %s\n", id, state)
				return nil
			})
		},
	}
}

// resolveItem finds the aggregated item with the given key.
func resolveItem(ctx context.Context, st *store.Store, key string) (media.Item, error) {
	key = strings.TrimSpace(key)
	if !strings.Contains(key, ":") {
		return media.Item{}, fmt.Errorf("invalid key %q: want <source>:<id>, e.g. chat:abc123", key)
	}
	src, err := st.List(ctx)
	if err != nil {
		return media.Item{}, err
	}
	for _, it := range aggregate.Aggregate(src) {
		if it.Key() == key {
			return it, nil
		}
	}
	return media.Item{}, fmt.Errorf("%s: %w", key, store.ErrNotFound)
}
