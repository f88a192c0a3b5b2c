package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"studytrail/internal/progress"
)

type claimView struct {
	Username string   `json:"username"`
	Status   string   `json:"status"`
	Sync     syncView `json:"sync"`
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	var suggest bool

	cmd := &cobra.Command{
		Use:   "claim <username>",
		Short: "Create or resume a username",
		Long: `Claim a username with the identity service.

A new username is seeded with the progress on this device. An existing
username is resumed: both records are merged and the result is pushed back.
Use --suggest to ask the service for a free username instead.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if suggest {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *Session) error {
				if suggest {
					return runSuggest(ctx, cmd, rootOpts, s)
				}
				return runClaim(ctx, cmd, rootOpts, s, args[0])
			})
		},
	}

	cmd.Flags().BoolVar(&suggest, "suggest", false, "print a free username instead of claiming one")
	return cmd
}

func runSuggest(ctx context.Context, cmd *cobra.Command, opts *RootOptions, s *Session) error {
	if s.Remote == nil {
		return errors.New("no identity service is configured")
	}
	username, err := s.Remote.SuggestUsername(ctx)
	if err != nil {
		return err
	}
	return output(cmd.OutOrStdout(), opts, map[string]string{"username": username}, "%s is free. Claim it with: studytrail claim %s", username, username)
}

func runClaim(ctx context.Context, cmd *cobra.Command, opts *RootOptions, s *Session, username string) error {
	result := s.Identity.Claim(ctx, username)
	if result.Kind == progress.ClaimError {
		return errors.New(result.Message)
	}

	var syncResult progress.SyncResult
	if result.Kind == progress.ClaimCreated {
		syncResult = s.Syncer.Push(ctx)
	} else {
		syncResult = s.Syncer.ManualMerge(ctx)
	}

	view := claimView{Username: result.Identity.Username, Status: result.Kind.String(), Sync: newSyncView(syncResult)}
	if result.Kind == progress.ClaimCreated {
		return output(cmd.OutOrStdout(), opts, view, "Claimed %s. %s", view.Username, describeSync(syncResult))
	}
	return output(cmd.OutOrStdout(), opts, view, "Welcome back, %s. %s", view.Username, describeSync(syncResult))
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the username and keep progress on this device only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *Session) error {
				username := s.Identity.Current().Username
				if username == "" {
					return output(cmd.OutOrStdout(), rootOpts, map[string]string{"status": "local"}, "Not signed in.")
				}
				s.Syncer.Flush(ctx)
				if err := s.Syncer.ClearIdentity(ctx); err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts, map[string]string{"status": "signed_out", "username": username}, "Signed out of %s.", username)
			})
		},
	}
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge this device's progress with the remote record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *Session) error {
				if s.Identity.Current().Username == "" {
					return errors.New("claim a username before syncing")
				}
				result := s.Syncer.ManualMerge(ctx)
				return output(cmd.OutOrStdout(), rootOpts, newSyncView(result), "%s", describeSync(result))
			})
		},
	}
}
