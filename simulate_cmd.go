package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fitfunnel/api/analytics"
	"fitfunnel/api/catalog"
	"fitfunnel/api/funnel"
	"fitfunnel/api/models"
	"fitfunnel/api/sinks"
)

type simulation struct {
	Plan    string
	AddOns  []string
	Answers []string
	UserID  string
	Delay   time.Duration
}

var simOpts simulation

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Walk one visitor through the whole funnel and print the order",
	Long: `simulate drives a single funnel from the landing page to a completed
checkout, logging every event. With JOURNAL_PATH set the events are also
appended to the SQLite journal.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simOpts.Plan, "plan", "pro", "Plan to select")
	simulateCmd.Flags().StringSliceVar(&simOpts.AddOns, "addon", []string{"nutrition"}, "Add-ons to put in the cart")
	simulateCmd.Flags().StringSliceVar(&simOpts.Answers, "answer", nil, "Quiz answers in step order (default: first option of each step)")
	simulateCmd.Flags().StringVar(&simOpts.UserID, "user", "", "Identify the visitor as this user before checkout")
	simulateCmd.Flags().DurationVar(&simOpts.Delay, "delay", 0, "Simulated payment delay")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	b := analytics.NewBroadcaster(logger)
	b.Register(sinks.NewLogSink(logger))
	if cfg.JournalPath != "" {
		journal, err := openJournal(ctx, cfg.JournalPath, logger)
		if err != nil {
			return err
		}
		defer journal.Close()
		b.Register(sinks.NewJournalSink(journal.store))
	}

	f := funnel.New("simulation", b, analytics.WithLogger(logger))
	f.Analytics.Init(ctx, cfg.AnalyticsToken)

	order, err := simOpts.run(ctx, f, cat)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(order)
}

// run walks f through landing, quiz, plans, cart and checkout.
func (s simulation) run(ctx context.Context, f *funnel.Funnel, cat *catalog.Catalog) (models.Order, error) {
	ctx = analytics.WithPageURL(ctx, "/")
	funnel.ViewLanding(ctx, f, "direct")
	f.Analytics.Track(ctx, models.EventCTAClicked, models.Properties{
		"buttonText": "Start Your Journey",
		"location":   "hero",
	})
	funnel.StartQuiz(ctx, f, "landing_page")

	for step := 1; step <= cat.TotalSteps(); step++ {
		stepCtx := analytics.WithPageURL(ctx, fmt.Sprintf("/quiz/%d", step))
		q, err := funnel.ViewQuizStep(stepCtx, f, cat, step)
		if err != nil {
			return models.Order{}, err
		}
		answer := q.Options[0]
		if step <= len(s.Answers) {
			answer = s.Answers[step-1]
		}
		if err := funnel.AnswerQuizStep(stepCtx, f, cat, step, answer); err != nil {
			return models.Order{}, err
		}
		if _, err := funnel.CompleteQuizStep(stepCtx, f, cat, step); err != nil {
			return models.Order{}, err
		}
	}

	plansCtx := analytics.WithPageURL(ctx, "/plans")
	funnel.ViewPlans(plansCtx, f, cat)
	if err := funnel.SelectPlan(plansCtx, f, cat, s.Plan); err != nil {
		return models.Order{}, err
	}
	for _, id := range s.AddOns {
		if _, err := funnel.AddAddOn(plansCtx, f, cat, id); err != nil {
			return models.Order{}, err
		}
	}
	if err := funnel.ContinueWithPlan(plansCtx, f, cat); err != nil {
		return models.Order{}, err
	}

	cartCtx := analytics.WithPageURL(ctx, "/cart")
	funnel.ViewCart(cartCtx, f, "direct")
	if s.UserID != "" {
		if err := f.Analytics.Identify(cartCtx, s.UserID, nil); err != nil {
			return models.Order{}, err
		}
	}
	return funnel.Checkout(cartCtx, f, s.Delay)
}
