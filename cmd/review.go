package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spigell/jobradar/internal/filtering"
	"github.com/spigell/jobradar/internal/posting"
	"github.com/spigell/jobradar/internal/storage"
	"go.uber.org/zap"
)

const (
	PromptBack          = "back"
	PromptExit          = "exit"
	PromptExcludeFile   = "Reject and append to exclude file"
	PromptMarkApplied   = "Mark as applied"
	PromptMarkSaved     = "Save for later"
	PromptMarkReviewed  = "Mark as reviewed"
	PromptMarkRejected  = "Reject"
	reviewDefaultLimit  = 30
	reviewDefaultMinScore = 0.5
)

var errExit = errors.New("exit requested")

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Triage new postings interactively",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := context.Background()
		a := setup(ctx)
		defer a.Close()

		minScore, _ := cmd.Flags().GetFloat64("min-score")
		limit, _ := cmd.Flags().GetInt("limit")

		postings, err := a.store.Query(ctx, storage.Filter{MinScore: minScore, Status: posting.StatusNew, Limit: limit})
		if err != nil {
			a.logger.Fatal("querying postings", zap.Error(err))
		}
		if len(postings) == 0 {
			a.logger.Info("exiting", zap.String("reason", "nothing to review"))
			return
		}

		if err := review(ctx, a, postings); err != nil && !errors.Is(err, errExit) {
			a.logger.Fatal("exiting", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().Float64("min-score", reviewDefaultMinScore, "only review postings scored at or above this value")
	reviewCmd.Flags().IntP("limit", "n", reviewDefaultLimit, "maximum number of postings to load")
}

func review(ctx context.Context, a *application, postings []*posting.Posting) error {
	for len(postings) > 0 {
		items := make([]string, 0, len(postings)+1)
		for _, p := range postings {
			items = append(items, fmt.Sprintf("%d [%s] %s / %s / %s",
				p.ID, formatScore(p), p.Title, p.Company, p.DisplayLocation(),
			))
		}

		postingPrompt := promptui.Select{
			Label: fmt.Sprintf("Choose a posting and press ENTER (%d left)", len(postings)),
			Items: append(items, PromptExit),
			Size:  15,
		}

		idx, selected, err := postingPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptExit {
			return errExit
		}

		p := postings[idx]
		done, err := triage(ctx, a, p)
		if err != nil {
			return err
		}
		if done {
			postings = append(postings[:idx], postings[idx+1:]...)
		}
	}

	a.logger.Info("review complete")
	return nil
}

// triage asks what to do with one posting. It reports whether the posting
// left the review queue.
func triage(ctx context.Context, a *application, p *posting.Posting) (bool, error) {
	fmt.Printf("\n%s at %s (%s)\n%s\n", p.Title, p.Company, p.DisplayLocation(), p.URL)
	if p.ScoreReasoning != "" {
		fmt.Printf("score %s: %s\n", formatScore(p), p.ScoreReasoning)
	}

	actions := []string{PromptMarkApplied, PromptMarkSaved, PromptMarkReviewed, PromptMarkRejected}
	if a.config.Ingest.ExcludeFile != "" {
		actions = append(actions, PromptExcludeFile)
	}

	actionPrompt := promptui.Select{
		Label: "Posting " + strconv.FormatInt(p.ID, 10),
		Items: append(actions, PromptBack),
	}
	_, action, err := actionPrompt.Run()
	if err != nil {
		return false, err
	}

	var status posting.Status
	switch action {
	case PromptBack:
		return false, nil
	case PromptMarkApplied:
		status = posting.StatusApplied
	case PromptMarkSaved:
		status = posting.StatusSaved
	case PromptMarkReviewed:
		status = posting.StatusReviewed
	case PromptMarkRejected:
		status = posting.StatusRejected
	case PromptExcludeFile:
		added, err := filtering.AppendExcluded(a.config.Ingest.ExcludeFile, []string{p.URL})
		if err != nil {
			return false, err
		}
		a.logger.Info("appended to exclude file", zap.String("filename", a.config.Ingest.ExcludeFile), zap.Int("added", added))
		status = posting.StatusRejected
	default:
		return false, fmt.Errorf("invalid action: %s", action)
	}

	notes, err := askNotes()
	if err != nil {
		return false, err
	}
	if err := a.store.SetUserStatus(ctx, p.ID, status, notes); err != nil {
		return false, err
	}

	a.logger.Info("posting triaged", zap.Int64("posting_id", p.ID), zap.String("status", string(status)))
	return true, nil
}

// askNotes returns nil when the operator leaves the notes empty, so stored
// notes are kept.
func askNotes() (*string, error) {
	notesPrompt := promptui.Prompt{Label: "Notes (optional)"}
	notes, err := notesPrompt.Run()
	if err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, nil
	}
	return &notes, nil
}
