package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpm/stuplan/internal/conversation"
)

func newConversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Planning conversation management commands",
	}

	cmd.AddCommand(newConversationListCmd())
	cmd.AddCommand(newConversationShowCmd())
	cmd.AddCommand(newConversationDeleteCmd())
	cmd.AddCommand(newConversationStatsCmd())
	cmd.AddCommand(newConversationCleanupCmd())
	cmd.AddCommand(newConversationStepsCmd())

	return cmd
}

func newConversationListCmd() *cobra.Command {
	var (
		recent     bool
		userID     string
		step       string
		activeOnly bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List planning conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if recent {
				items, err := a.processor.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Println("No recent conversations.")
					return nil
				}

				fmt.Printf("%-42s  %-22s  %-9s  %s\n", "ID", "STEP", "STATUS", "SUMMARY")
				fmt.Println(strings.Repeat("-", 100))
				for _, m := range items {
					fmt.Printf("%-42s  %-22s  %-9s  %s\n",
						truncate(m.ConversationID, 42),
						m.CurrentStep.DisplayName(),
						m.Status,
						m.Summary,
					)
				}
				return nil
			}

			filter := conversation.Filter{
				UserID:     userID,
				ActiveOnly: activeOnly,
				Limit:      limit,
			}
			if step != "" {
				s, err := conversation.ParseStep(step)
				if err != nil {
					return err
				}
				filter.Step = &s
			}

			states, err := a.store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if len(states) == 0 {
				fmt.Println("No conversations found.")
				return nil
			}

			// Header
			fmt.Printf("%-42s  %-16s  %-22s  %s\n", "ID", "USER", "STEP", "UPDATED")
			fmt.Println(strings.Repeat("-", 100))

			for _, s := range states {
				fmt.Printf("%-42s  %-16s  %-22s  %s\n",
					truncate(s.ConversationID, 42),
					truncate(s.UserID, 16),
					s.CurrentStep.DisplayName(),
					s.UpdatedAt.Format("2006-01-02 15:04"),
				)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&recent, "recent", false, "Show the recent conversations index instead of the database")
	cmd.Flags().StringVar(&userID, "user", "", "Filter by student")
	cmd.Flags().StringVar(&step, "step", "", "Filter by current step")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Show only unfinished conversations")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of conversations to show")

	return cmd
}

func newConversationShowCmd() *cobra.Command {
	var showEvents bool

	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Show conversation details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			a, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := a.processor.Load(cmd.Context(), id)
			if err != nil {
				return err
			}
			progress := conversation.GetConversationProgress(*s)

			fmt.Printf("ID:          %s\n", s.ConversationID)
			fmt.Printf("Student:     %s\n", s.UserID)
			fmt.Printf("University:  %d\n", s.UniversityID)
			fmt.Printf("Step:        %s (%d of %d, %d%%)\n",
				progress.CurrentStepLabel, progress.CurrentStepNumber, progress.TotalSteps, progress.CompletionPercentage)
			fmt.Printf("Created:     %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Updated:     %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
			if a.local.IsExpired(*s) {
				fmt.Println("Expired:     yes")
			}
			if s.PendingToolCall != nil {
				fmt.Printf("Waiting on:  %s\n", s.PendingToolCall.Tool)
			}

			if len(progress.CollectedFields) > 0 {
				fmt.Println("\nCollected:")
				for _, f := range progress.CollectedFields {
					value := f.Value
					if len(f.Values) > 0 {
						value = strings.Join(f.Values, ", ")
					}
					fmt.Printf("  %-26s %s\n", f.Label+":", value)
				}
			}

			if readiness := conversation.IsReadyForGeneration(*s); !readiness.IsValid {
				fmt.Println("\nMissing before plan generation:")
				for _, e := range readiness.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			// Show reachable steps
			if len(s.CompletedSteps) > 0 {
				fmt.Println("\nCan go back to:")
				for _, step := range s.CompletedSteps {
					fmt.Printf("  <- %s\n", step.DisplayName())
				}
			}

			if showEvents {
				events, err := a.store.GetEvents(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("get events: %w", err)
				}

				if len(events) > 0 {
					fmt.Println("\n--- Events ---")
					for _, e := range events {
						fmt.Printf("[%s] %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.EventType)
						if e.Payload != "" {
							fmt.Printf("    %s\n", truncate(e.Payload, 100))
						}
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showEvents, "events", false, "Show conversation events")

	return cmd
}

func newConversationDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversation-id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			a, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := a.processor.Delete(cmd.Context(), id); err != nil {
				return err
			}

			fmt.Printf("Deleted conversation: %s\n", id)
			return nil
		},
	}
}

func newConversationStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show conversation statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			// Count by step
			fmt.Println("Conversations by step:")
			total := 0
			for _, step := range conversation.AllSteps() {
				count, err := a.store.Count(cmd.Context(), conversation.Filter{Step: &step})
				if err != nil {
					return err
				}
				total += count
				fmt.Printf("  %-26s %d\n", step.DisplayName()+":", count)
			}
			fmt.Printf("  %-26s %d\n", "Total:", total)

			activeCount, err := a.store.Count(cmd.Context(), conversation.Filter{ActiveOnly: true})
			if err != nil {
				return err
			}
			fmt.Printf("\nActive conversations: %d\n", activeCount)

			return nil
		},
	}
}

func newConversationCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove expired conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := a.processor.Cleanup(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Removed %d local and %d stored conversations older than %s\n",
				res.Local, res.Database, a.local.TTL())
			return nil
		},
	}
}

func newConversationStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps",
		Short: "List conversation steps and what going back to each resets",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, step := range conversation.AllSteps() {
				fmt.Fprintf(out, "%2d. %-24s %s\n", i+1, step.DisplayName(), step)

				resets := conversation.StepsToReset(step)
				if len(resets) == 0 {
					continue
				}
				names := make([]string, 0, len(resets))
				for _, r := range resets {
					names = append(names, r.DisplayName())
				}
				fmt.Fprintf(out, "    resets: %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}
}

// truncate truncates a string to the given length, adding "..." if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
