package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"studytrail/internal/progress"
)

type quizView struct {
	Topic   string `json:"topic"`
	Quiz    string `json:"quiz"`
	Correct bool   `json:"correct"`
	XP      int    `json:"xp"`
}

// NewQuizCommand creates the quiz command.
func NewQuizCommand(rootOpts *RootOptions) *cobra.Command {
	var correct bool

	cmd := &cobra.Command{
		Use:   "quiz <topic> <quiz>",
		Short: "Record an answer to a quiz",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *Session) error {
				topicID, quizID := args[0], args[1]
				if err := s.Tracker.RecordQuizAttempt(ctx, topicID, quizID, correct); err != nil {
					return err
				}
				view := quizView{Topic: topicID, Quiz: quizID, Correct: correct, XP: s.Tracker.Snapshot().XP}
				verdict := "incorrect"
				if correct {
					verdict = "correct"
				}
				return output(cmd.OutOrStdout(), rootOpts, view, "Recorded %s answer for %s/%s. XP: %d", verdict, topicID, quizID, view.XP)
			})
		},
	}

	cmd.Flags().BoolVar(&correct, "correct", false, "the answer was correct")
	return cmd
}

type essayView struct {
	Topic      string `json:"topic"`
	Characters int    `json:"characters"`
	Submitted  bool   `json:"submitted"`
	XP         int    `json:"xp"`
}

// NewEssayCommand creates the essay command.
func NewEssayCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		submit bool
		file   string
	)

	cmd := &cobra.Command{
		Use:   "essay <topic> [text...]",
		Short: "Save an essay draft, or submit it with --submit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := essayText(args[1:], file)
			if err != nil {
				return err
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *Session) error {
				topicID := args[0]
				chars := utf8.RuneCountInString(text)
				if submit {
					err = s.Tracker.RecordEssaySave(ctx, topicID, text, chars)
				} else {
					err = s.Tracker.RecordEssayDraft(ctx, topicID, text, chars)
				}
				if err != nil {
					return err
				}

				snapshot := s.Tracker.Snapshot()
				view := essayView{Topic: topicID, Characters: chars, XP: snapshot.XP}
				if topic, ok := snapshot.Topics[topicID]; ok {
					view.Submitted = topic.EssaySubmitted
				}
				if submit {
					return output(cmd.OutOrStdout(), rootOpts, view, "Submitted essay for %s (%d characters). XP: %d", topicID, chars, view.XP)
				}
				return output(cmd.OutOrStdout(), rootOpts, view, "Saved draft for %s (%d characters).", topicID, chars)
			})
		},
	}

	cmd.Flags().BoolVar(&submit, "submit", false, "submit the essay instead of saving a draft")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the essay from a file")
	return cmd
}

func essayText(args []string, file string) (string, error) {
	if file == "" {
		return strings.Join(args, " "), nil
	}
	if len(args) > 0 {
		return "", errors.New("pass the essay as arguments or with --file, not both")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read essay: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// NewRewardCommand creates the reward command.
func NewRewardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reward <topic>",
		Short: "Unlock a topic's reward once its quizzes and essay are done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *Session) error {
				topicID := args[0]
				err := s.Tracker.MarkRewardUnlocked(ctx, topicID)
				if errors.Is(err, progress.ErrRewardLocked) {
					return fmt.Errorf("the reward for %s is still locked: answer every quiz correctly and write a long enough essay", topicID)
				}
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), rootOpts, map[string]string{"topic": topicID, "reward": "unlocked"}, "Reward unlocked for %s.", topicID)
			})
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all progress",
		Long: `Erase all progress on this device.

When a username is claimed the fresh record replaces the remote one on the
next push.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.New("reset erases all progress; pass --yes to confirm")
			}
			return withSession(cmd, rootOpts, func(ctx context.Context, s *Session) error {
				s.Tracker.ResetProgress(ctx)
				return output(cmd.OutOrStdout(), rootOpts, map[string]string{"status": "reset"}, "Progress erased.")
			})
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the reset")
	return cmd
}
