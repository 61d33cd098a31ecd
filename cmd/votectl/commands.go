package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/electionvote/internal/app"
	"github.com/abrezinsky/electionvote/internal/config"
	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
	"github.com/abrezinsky/electionvote/internal/services"
)

// storeOpener opens the vote store; tests substitute an in-memory one
type storeOpener func(ctx context.Context) (repository.FullRepository, error)

type cli struct {
	out  io.Writer
	open storeOpener
	log  logger.Logger

	configPath string
	driver     string
	dbPath     string
	asJSON     bool
}

// newRootCmd builds the command tree. A nil opener resolves the store from
// the same config sources as the server.
func newRootCmd(out io.Writer, open storeOpener) *cobra.Command {
	c := &cli{out: out, open: open, log: logger.Discard()}
	if c.open == nil {
		c.open = c.openFromConfig
	}

	root := &cobra.Command{
		Use:           "votectl",
		Short:         "Maintenance tasks for the electionvote store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&c.driver, "driver", "", "Storage driver (sqlite, mongo)")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path")
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print JSON instead of a table")

	root.AddCommand(c.reconcileCmd(), c.statsCmd(), c.verifyPollsCmd())
	return root
}

func (c *cli) openFromConfig(ctx context.Context) (repository.FullRepository, error) {
	var args []string
	if c.configPath != "" {
		args = append(args, "-config", c.configPath)
	}
	if c.driver != "" {
		args = append(args, "-driver", c.driver)
	}
	if c.dbPath != "" {
		args = append(args, "-db", c.dbPath)
	}
	cfg, err := config.Load(args, ".env", io.Discard)
	if err != nil {
		return nil, err
	}
	return app.OpenRepository(ctx, cfg)
}

// withStore opens the store for the duration of fn
func (c *cli) withStore(ctx context.Context, fn func(repository.FullRepository) error) error {
	repo, err := c.open(ctx)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer repo.Close()
	return fn(repo)
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) reconcileCmd() *cobra.Command {
	var candidateID, pollID string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair vote counters from the ledger",
		Long: `Recount every candidate and poll choice from its ledger and overwrite
counters that drifted. --candidate or --poll limits the pass to one subject.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(repo repository.FullRepository) error {
				tally := services.NewTallyService(c.log, repo, nil)
				report, err := reconcile(cmd.Context(), tally, candidateID, pollID)
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(report)
				}

				tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KIND\tSUBJECT\tCHOICE\tCOUNTER\tLEDGER\tCORRECTED")
				for _, r := range report.Results {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\n", r.Kind, r.SubjectID, r.ChoiceID, r.Counter, r.Ledger, r.Corrected)
				}
				tw.Flush()
				fmt.Fprintf(c.out, "\nchecked %d, corrected %d\n", report.Checked, report.Corrected)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&candidateID, "candidate", "", "Reconcile one candidate")
	cmd.Flags().StringVar(&pollID, "poll", "", "Reconcile one poll")
	cmd.MarkFlagsMutuallyExclusive("candidate", "poll")
	return cmd
}

func reconcile(ctx context.Context, tally *services.TallyService, candidateID, pollID string) (*services.ReconcileReport, error) {
	var results []services.ReconcileResult
	switch {
	case candidateID != "":
		res, err := tally.ReconcileCandidate(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		results = []services.ReconcileResult{*res}
	case pollID != "":
		res, err := tally.ReconcilePoll(ctx, pollID)
		if err != nil {
			return nil, err
		}
		results = res
	default:
		return tally.ReconcileAll(ctx)
	}

	report := &services.ReconcileReport{Checked: len(results), Results: results}
	for _, r := range results {
		if r.Corrected {
			report.Corrected++
		}
	}
	return report, nil
}

func (c *cli) statsCmd() *cobra.Command {
	var f models.CandidateFilter
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show vote statistics for a candidate group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(repo repository.FullRepository) error {
				tally := services.NewTallyService(c.log, repo, nil)
				stats, err := tally.RecomputeGroup(cmd.Context(), f)
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(stats)
				}

				tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tCANDIDATE\tPARTY\tCONSTITUENCY\tVOTES\tPERCENT")
				for i, s := range stats.Candidates {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s%%\n", i+1, s.Name, s.Party, s.Constituency, s.Votes, s.VotePercentage)
				}
				tw.Flush()
				fmt.Fprintf(c.out, "\n%d candidates, %d votes\n", stats.TotalCandidates, stats.TotalVotes)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Constituency, "constituency", "", "Constituency substring")
	cmd.Flags().StringVar(&f.PartyName, "party", "", "Party name substring")
	cmd.Flags().StringVar(&f.CandidacyLevel, "level", "", "Candidacy level")
	return cmd
}

// pollCheck is one row of the verify-polls report
type pollCheck struct {
	ID         string                  `json:"id"`
	Title      string                  `json:"title"`
	State      models.PollState        `json:"state"`
	TotalVotes int                     `json:"totalVotes"`
	Choices    []services.ChoiceResult `json:"choices"`
	Drifted    []string                `json:"drifted,omitempty"`
}

func (c *cli) verifyPollsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "verify-polls",
		Short: "List polls with their results and flag counters that disagree with the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(repo repository.FullRepository) error {
				checks, err := verifyPolls(cmd.Context(), c.log, repo, !all)
				if err != nil {
					return err
				}
				if c.asJSON {
					return c.printJSON(checks)
				}
				if len(checks) == 0 {
					fmt.Fprintln(c.out, "no polls found")
					return nil
				}

				for i, p := range checks {
					fmt.Fprintf(c.out, "%d. %s [%s]\n   id: %s\n   total votes: %d\n", i+1, p.Title, p.State, p.ID, p.TotalVotes)
					for _, ch := range p.Choices {
						fmt.Fprintf(c.out, "     %-35s %s %d (%s%%)\n", ch.Label, bar(ch.Percentage), ch.Votes, ch.Percentage)
					}
					if len(p.Drifted) > 0 {
						fmt.Fprintf(c.out, "   drifted choices: %s (run votectl reconcile --poll %s)\n", strings.Join(p.Drifted, ", "), p.ID)
					}
					fmt.Fprintln(c.out)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include inactive polls")
	return cmd
}

// verifyPolls reports every poll's results and the choices whose counter
// differs from the ledger count, without modifying anything
func verifyPolls(ctx context.Context, log logger.Logger, repo repository.FullRepository, activeOnly bool) ([]pollCheck, error) {
	guard := services.NewGuard(log, repo, nil)
	tally := services.NewTallyService(log, repo, nil)
	polls := services.NewPollService(log, repo, guard, tally, nil)

	views, err := polls.ListPolls(ctx, activeOnly)
	if err != nil {
		return nil, err
	}

	checks := make([]pollCheck, 0, len(views))
	for _, v := range views {
		results := services.BuildPollResults(&v.Poll)
		counts, err := repo.CountPollVotes(ctx, v.ID)
		if err != nil {
			return nil, fmt.Errorf("counting votes for poll %s: %w", v.ID, err)
		}

		check := pollCheck{ID: v.ID, Title: v.Title, State: v.State, TotalVotes: results.TotalVotes, Choices: results.Choices}
		for _, ch := range v.Choices {
			if counts[ch.ID] != ch.VotesCount {
				check.Drifted = append(check.Drifted, ch.Label)
			}
		}
		checks = append(checks, check)
	}
	return checks, nil
}

// bar renders a 25-cell percentage bar
func bar(percentage string) string {
	var pct float64
	fmt.Sscanf(percentage, "%f", &pct)
	filled := int(pct/4 + 0.5)
	if filled > 25 {
		filled = 25
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", 25-filled)
}
