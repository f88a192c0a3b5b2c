package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"studytrail/internal/progress"
)

// StatusView is the learner's progress summary
type StatusView struct {
	Username   string       `json:"username,omitempty"`
	XP         int          `json:"xp"`
	StreakDays int          `json:"streakDays"`
	Completion int          `json:"completion"`
	Accuracy   float64      `json:"accuracy"`
	Lessons    []LessonView `json:"lessons"`
	Sync       *syncView    `json:"sync,omitempty"`
}

// LessonView summarizes one lesson
type LessonView struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Active     bool        `json:"active"`
	Completion int         `json:"completion"`
	Topics     []TopicView `json:"topics"`
}

// TopicView summarizes one topic
type TopicView struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Completion     int     `json:"completion"`
	Accuracy       float64 `json:"accuracy"`
	RewardUnlocked bool    `json:"rewardUnlocked"`
	Unlockable     bool    `json:"unlockable"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show XP, streak and completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(ctx context.Context, s *Session) error {
				view := buildStatus(s)
				if rootOpts.Format == "json" {
					return output(cmd.OutOrStdout(), rootOpts, view, "")
				}
				return writeStatus(cmd.OutOrStdout(), view)
			})
		},
	}
}

func buildStatus(s *Session) StatusView {
	snapshot := s.Tracker.Snapshot()
	view := StatusView{
		Username:   s.Identity.Current().Username,
		XP:         snapshot.XP,
		StreakDays: snapshot.StreakDays,
		Completion: s.Tracker.CurriculumCompletion(),
		Accuracy:   s.Tracker.Accuracy(""),
	}
	if result, ok := s.Syncer.LastResult(progress.OpFetch); ok && result.Outcome != progress.OutcomeSkipped {
		sv := newSyncView(result)
		view.Sync = &sv
	}

	for _, lesson := range s.Catalog.Lessons {
		lv := LessonView{
			ID:         lesson.ID,
			Title:      lesson.Title,
			Active:     lesson.Active,
			Completion: s.Tracker.LessonCompletion(lesson.ID),
		}
		for _, topic := range lesson.Topics {
			tv := TopicView{
				ID:         topic.ID,
				Title:      topic.Title,
				Completion: s.Tracker.TopicCompletion(topic.ID),
				Accuracy:   s.Tracker.Accuracy(topic.ID),
				Unlockable: s.Tracker.IsRewardUnlockable(topic.ID),
			}
			if tp, ok := snapshot.Topics[topic.ID]; ok {
				tv.RewardUnlocked = tp.RewardUnlocked
			}
			lv.Topics = append(lv.Topics, tv)
		}
		view.Lessons = append(view.Lessons, lv)
	}
	return view
}

func writeStatus(w io.Writer, view StatusView) error {
	var b strings.Builder
	if view.Username != "" {
		fmt.Fprintf(&b, "Signed in as %s\n", view.Username)
	} else {
		b.WriteString("Not signed in; progress is kept on this device\n")
	}
	fmt.Fprintf(&b, "XP: %d  Streak: %d day(s)  Completion: %d%%  Accuracy: %.0f%%\n",
		view.XP, view.StreakDays, view.Completion, view.Accuracy*100)

	for _, lesson := range view.Lessons {
		if !lesson.Active {
			continue
		}
		fmt.Fprintf(&b, "\n%s  %d%%\n", lesson.Title, lesson.Completion)
		for _, topic := range lesson.Topics {
			reward := ""
			switch {
			case topic.RewardUnlocked:
				reward = "  [reward unlocked]"
			case topic.Unlockable:
				reward = "  [reward ready]"
			}
			fmt.Fprintf(&b, "  %-24s %3d%%%s\n", topic.Title, topic.Completion, reward)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
