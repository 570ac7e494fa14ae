package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mpm/stuplan/internal/planner"
)

// planFlags are shared by the plan subcommands.
type planFlags struct {
	credits          int
	strategy         string
	startTerm        string
	startYear        int
	includeSecondary bool
	terms            []string
	termsFile        string
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.credits, "credits", 0, "Total credits to schedule")
	cmd.Flags().StringVar(&f.strategy, "strategy", string(planner.StrategyBalanced), "Pacing strategy (fast_track, balanced, explore)")
	cmd.Flags().StringVar(&f.startTerm, "start-term", "fall", "First term of the plan")
	cmd.Flags().IntVar(&f.startYear, "start-year", time.Now().Year(), "Year of the first term")
	cmd.Flags().BoolVar(&f.includeSecondary, "include-secondary", false, "Also schedule secondary terms such as summer")
	cmd.Flags().StringSliceVar(&f.terms, "terms", nil, "Only schedule these term ids")
	cmd.Flags().StringVar(&f.termsFile, "terms-file", "", "Academic terms YAML (default: terms_file from config)")
	cmd.MarkFlagRequired("credits")
}

func (f *planFlags) academicTerms() (planner.AcademicTerms, error) {
	path := f.termsFile
	if path == "" {
		path = viper.GetString("terms_file")
	}
	if path == "" {
		return planner.DefaultAcademicTerms(), nil
	}
	return planner.LoadAcademicTerms(path)
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Credit distribution calculators",
	}

	cmd.AddCommand(newPlanDistributeCmd())
	cmd.AddCommand(newPlanEstimateCmd())

	return cmd
}

func newPlanDistributeCmd() *cobra.Command {
	var f planFlags
	var gradDate string

	cmd := &cobra.Command{
		Use:   "distribute",
		Short: "Spread credits across the terms up to graduation",
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := planner.ParseStrategy(f.strategy)
			if err != nil {
				return err
			}
			terms, err := f.academicTerms()
			if err != nil {
				return err
			}
			grad, err := time.Parse("2006-01", gradDate)
			if err != nil {
				return fmt.Errorf("invalid graduation date %q (want YYYY-MM): %w", gradDate, err)
			}

			allocations, err := planner.CalculateSemesterDistribution(planner.DistributionInput{
				TotalCredits:     f.credits,
				Strategy:         strategy,
				IncludeSecondary: f.includeSecondary,
				SelectedTermIDs:  f.terms,
				AcademicTerms:    terms,
				AdmissionYear:    f.startYear,
				AdmissionTerm:    f.startTerm,
				GraduationDate:   grad,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-16s  %-10s  %7s  %s\n", "TERM", "TYPE", "CREDITS", "RANGE")
			fmt.Fprintln(out, strings.Repeat("-", 48))
			total := 0
			for _, a := range allocations {
				total += a.SuggestedCredits
				fmt.Fprintf(out, "%-16s  %-10s  %7d  %d-%d\n",
					fmt.Sprintf("%s %d", a.Term, a.Year), a.TermType, a.SuggestedCredits, a.MinCredits, a.MaxCredits)
			}
			fmt.Fprintf(out, "\n%d terms, %d credits (%s)\n", len(allocations), total, strategy.DisplayName())
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&gradDate, "grad", "", "Expected graduation month (YYYY-MM)")
	cmd.MarkFlagRequired("grad")

	return cmd
}

func newPlanEstimateCmd() *cobra.Command {
	var f planFlags

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the term in which the credits are completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy, err := planner.ParseStrategy(f.strategy)
			if err != nil {
				return err
			}
			terms, err := f.academicTerms()
			if err != nil {
				return err
			}

			est, err := planner.EstimateCompletionTerm(planner.CompletionInput{
				TotalCredits:     f.credits,
				Strategy:         strategy,
				IncludeSecondary: f.includeSecondary,
				SelectedTermIDs:  f.terms,
				AcademicTerms:    terms,
				AdmissionYear:    f.startYear,
				AdmissionTerm:    f.startTerm,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Completion: %s %d after %d terms (%s)\n",
				est.Term, est.Year, est.TotalTerms, strategy.DisplayName())
			return nil
		},
	}

	f.register(cmd)

	return cmd
}
