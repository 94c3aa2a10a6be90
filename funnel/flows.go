package funnel

import (
	"context"
	"fmt"
	"slices"
	"time"

	"fitfunnel/api/catalog"
	"fitfunnel/api/models"
	"fitfunnel/api/utils"
)

// Page names used for Page Viewed events.
const (
	PageLanding = models.PageLanding
	PagePlans   = models.PagePlans
	PageCart    = models.PageCart
)

func ViewLanding(ctx context.Context, f *Funnel, source string) {
	f.Analytics.PageView(ctx, PageLanding, nil)
	f.Analytics.Track(ctx, models.EventLandingPageViewed, models.Properties{"source": source})
}

func StartQuiz(ctx context.Context, f *Funnel, source string) {
	f.Analytics.Track(ctx, models.EventQuizStarted, models.Properties{"source": source})
}

// ViewQuizStep records a visit to a quiz step and returns its question.
func ViewQuizStep(ctx context.Context, f *Funnel, cat *catalog.Catalog, step int) (catalog.QuizQuestion, error) {
	q, ok := cat.Question(step)
	if !ok {
		return catalog.QuizQuestion{}, fmt.Errorf("%w: %d", ErrUnknownStep, step)
	}
	f.Analytics.PageView(ctx, models.QuizPageName(step), nil)
	f.Analytics.Track(ctx, models.EventQuizStepViewed, models.Properties{
		"step":       step,
		"totalSteps": cat.TotalSteps(),
		"question":   q.Question,
	})
	return q, nil
}

// AnswerQuizStep stores answer after checking it is one of the step's
// options.
func AnswerQuizStep(ctx context.Context, f *Funnel, cat *catalog.Catalog, step int, answer string) error {
	q, ok := cat.Question(step)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownStep, step)
	}
	if !slices.Contains(q.Options, answer) {
		return fmt.Errorf("%w: %q", ErrUnknownAnswer, answer)
	}
	return f.Cart.SetQuizAnswer(ctx, step, answer)
}

// CompleteQuizStep moves past step using its stored answer. It reports
// whether that was the last step, in which case Quiz Completed is tracked
// as well.
func CompleteQuizStep(ctx context.Context, f *Funnel, cat *catalog.Catalog, step int) (bool, error) {
	if _, ok := cat.Question(step); !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownStep, step)
	}
	answers := f.Cart.QuizAnswers()
	answer, ok := answers[step]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrNoAnswer, step)
	}

	f.Analytics.Track(ctx, models.EventQuizStepCompleted, models.Properties{
		"step":   step,
		"answer": answer,
	})
	if step < cat.TotalSteps() {
		return false, nil
	}
	f.Analytics.Track(ctx, models.EventQuizCompleted, models.Properties{
		"answers":    answers,
		"totalSteps": cat.TotalSteps(),
	})
	return true, nil
}

func AbandonQuiz(ctx context.Context, f *Funnel, step int) {
	f.Analytics.Track(ctx, models.EventQuizAbandoned, models.Properties{"abandonedAtStep": step})
}

func ViewPlans(ctx context.Context, f *Funnel, cat *catalog.Catalog) {
	f.Analytics.PageView(ctx, PagePlans, nil)
	f.Analytics.Track(ctx, models.EventPlansViewed, models.Properties{
		"plansCount":  len(cat.Plans),
		"addOnsCount": len(cat.AddOns),
	})
}

// SelectPlan records planID as the chosen plan.
func SelectPlan(ctx context.Context, f *Funnel, cat *catalog.Catalog, planID string) error {
	if _, ok := cat.Plan(planID); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}
	f.Cart.SetSelectedPlan(ctx, planID)
	return nil
}

// AddAddOn puts the add-on in the cart unless it is already there. It
// reports whether the cart changed.
func AddAddOn(ctx context.Context, f *Funnel, cat *catalog.Catalog, id string) (bool, error) {
	addOn, ok := cat.AddOn(id)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownAddOn, id)
	}
	if f.Cart.HasItem(id) {
		return false, nil
	}
	if err := f.Cart.AddItem(ctx, addOn.ID, addOn.Name, addOn.Price); err != nil {
		return false, err
	}
	return true, nil
}

// ContinueWithPlan adds the selected plan to the cart and starts checkout.
func ContinueWithPlan(ctx context.Context, f *Funnel, cat *catalog.Catalog) error {
	planID := f.Cart.SelectedPlan()
	if planID == "" {
		return ErrNoPlanSelected
	}
	plan, ok := cat.Plan(planID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, planID)
	}

	itemCount := len(f.Cart.Items()) + 1
	if err := f.Cart.AddItem(ctx, plan.ID, plan.CartName(), plan.Price); err != nil {
		return err
	}
	f.Analytics.Track(ctx, models.EventCheckoutStarted, models.Properties{
		"planId":    planID,
		"itemCount": itemCount,
	})
	return nil
}

func ViewCart(ctx context.Context, f *Funnel, source string) models.CartState {
	state := f.Cart.Snapshot()
	f.Analytics.PageView(ctx, PageCart, nil)
	f.Analytics.Track(ctx, models.EventCartViewed, models.Properties{
		"itemCount": len(state.Items),
		"cartTotal": state.Total(),
		"source":    source,
	})
	f.Analytics.Page(ctx, PageCart)
	return state
}

// Checkout simulates payment for the cart as it is on entry. It tracks
// Checkout Started, waits delay, tracks Checkout Completed and takes the
// ordered lines out of the cart. Items added during the wait stay in the
// cart. If ctx ends during the wait nothing further is tracked and the cart
// is left as it was.
func Checkout(ctx context.Context, f *Funnel, delay time.Duration) (models.Order, error) {
	state := f.Cart.Snapshot()
	items := state.Items
	if len(items) == 0 {
		return models.Order{}, ErrEmptyCart
	}
	total := models.CartTotal(items)

	lines := make([]map[string]any, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, map[string]any{
			"id":    item.ID,
			"name":  item.Name,
			"price": item.Price,
			"qty":   item.Quantity,
		})
		ids = append(ids, item.ID)
	}

	f.Analytics.Track(ctx, models.EventCheckoutStarted, models.Properties{
		"itemCount": len(items),
		"cartTotal": total,
		"items":     lines,
	})

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return models.Order{}, fmt.Errorf("checkout interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}

	order := models.Order{
		ID:        utils.GenerateOrderID(time.Now()),
		Items:     items,
		Total:     total,
		SessionID: f.Analytics.Session().ID,
	}
	f.Analytics.Track(ctx, models.EventCheckoutCompleted, models.Properties{
		"orderId":    order.ID,
		"itemCount":  len(items),
		"orderTotal": total,
		"items":      ids,
	})
	f.Cart.RemoveOrdered(items, state.SelectedPlan)
	return order, nil
}
