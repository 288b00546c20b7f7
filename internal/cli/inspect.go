package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewInspectCommand creates the inspect command, which prints stored
// documents as JSON.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a stored document",
	}

	lookup := func(use, short string, get func(ctx context.Context, app *App, id string) (any, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := NewApp(cmd.Context(), rootOpts.Config)
				if err != nil {
					return err
				}
				defer app.Close()

				doc, err := get(cmd.Context(), app, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(doc)
			},
		}
	}

	cmd.AddCommand(lookup("activity", "Print an activity", func(ctx context.Context, app *App, id string) (any, error) {
		return app.Activities.GetActivity(ctx, id)
	}))
	cmd.AddCommand(lookup("profile", "Print a user profile", func(ctx context.Context, app *App, id string) (any, error) {
		return app.Profiles.GetProfile(ctx, id)
	}))
	cmd.AddCommand(lookup("friend-request", "Print a friend request", func(ctx context.Context, app *App, id string) (any, error) {
		return app.FriendRequests.GetFriendRequest(ctx, id)
	}))
	cmd.AddCommand(lookup("chat", "Print the members and messages of an activity chat", func(ctx context.Context, app *App, id string) (any, error) {
		members, err := app.Tree.ListMembers(ctx, id)
		if err != nil {
			return nil, err
		}
		msgs, err := app.Tree.ListMessages(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"members": members, "messages": msgs}, nil
	}))

	return cmd
}
