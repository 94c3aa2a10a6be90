package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"fitfunnel/api/models"
)

var (
	ErrInvalidStep  = errors.New("quiz step must be a positive integer")
	ErrInvalidPrice = errors.New("item price must be positive")
)

// Tracker receives the event each cart mutation emits.
type Tracker interface {
	Track(ctx context.Context, name string, properties models.Properties)
}

// CartStore holds cart line items, the selected plan and quiz answers.
// Every mutator applies its change and emits its event under one lock, so
// two mutations never interleave.
type CartStore struct {
	mu           sync.Mutex
	tracker      Tracker
	items        []models.CartItem
	selectedPlan string
	quizAnswers  map[int]string
}

func NewCartStore(tracker Tracker) *CartStore {
	return &CartStore{
		tracker:     tracker,
		quizAnswers: make(map[int]string),
	}
}

// AddItem appends the item with quantity 1, or bumps the quantity of an
// existing line. The price of an existing line is kept. A price that is not
// positive is rejected and nothing is emitted.
func (s *CartStore) AddItem(ctx context.Context, id, name string, price float64) error {
	if !(price > 0) {
		return fmt.Errorf("%w: %s costs %v", ErrInvalidPrice, id, price)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		s.items[i].Quantity++
	} else {
		s.items = append(s.items, models.CartItem{ID: id, Name: name, Price: price, Quantity: 1})
	}

	s.tracker.Track(ctx, models.EventItemAddedToCart, models.Properties{
		"itemId":   id,
		"itemName": name,
		"price":    price,
	})
	return nil
}

// RemoveItem drops the line with id. Removing an absent id changes nothing
// and emits nothing.
func (s *CartStore) RemoveItem(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ctx, id)
}

// UpdateQuantity sets the quantity of id. A quantity of zero or less removes
// the line exactly as RemoveItem would.
func (s *CartStore) UpdateQuantity(ctx context.Context, id string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		s.removeLocked(ctx, id)
		return
	}
	if i := s.indexOf(id); i >= 0 {
		s.items[i].Quantity = quantity
	}

	s.tracker.Track(ctx, models.EventCartUpdated, models.Properties{
		"itemId":      id,
		"newQuantity": quantity,
	})
}

// SetSelectedPlan records planID. The event depends on whether a plan was
// already selected, not on the new value.
func (s *CartStore) SetSelectedPlan(ctx context.Context, planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.selectedPlan
	s.selectedPlan = planID

	if previous != "" {
		s.tracker.Track(ctx, models.EventPlanChanged, models.Properties{
			"previousPlan": previous,
			"newPlan":      planID,
		})
		return
	}
	s.tracker.Track(ctx, models.EventPlanSelected, models.Properties{"planId": planID})
}

// SetQuizAnswer stores answer for the 1-based step, overwriting any earlier
// answer.
func (s *CartStore) SetQuizAnswer(ctx context.Context, step int, answer string) error {
	if step < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidStep, step)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.quizAnswers[step] = answer
	s.tracker.Track(ctx, models.EventQuizAnswerSelected, models.Properties{
		"step":   step,
		"answer": answer,
	})
	return nil
}

// ClearCart empties items and the selected plan. Quiz answers survive.
func (s *CartStore) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.selectedPlan = ""
}

// RemoveOrdered takes the ordered quantities out of the cart, leaving
// anything added since the snapshot. The selected plan is cleared only if it
// is still plan. Nothing is emitted.
func (s *CartStore) RemoveOrdered(ordered []models.CartItem, plan string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ordered {
		i := s.indexOf(o.ID)
		if i < 0 {
			continue
		}
		s.items[i].Quantity -= o.Quantity
		if s.items[i].Quantity <= 0 {
			s.items = slices.Delete(s.items, i, i+1)
		}
	}
	if len(s.items) == 0 {
		s.items = nil
	}
	if s.selectedPlan == plan {
		s.selectedPlan = ""
	}
}

func (s *CartStore) Items() []models.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *CartStore) HasItem(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(id) >= 0
}

func (s *CartStore) SelectedPlan() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPlan
}

func (s *CartStore) QuizAnswers() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.quizAnswers)
}

// Total is recomputed from the current items on every call.
func (s *CartStore) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CartTotal(s.items)
}

func (s *CartStore) Snapshot() models.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CartState{
		Items:        append([]models.CartItem{}, s.items...),
		SelectedPlan: s.selectedPlan,
		QuizAnswers:  maps.Clone(s.quizAnswers),
	}
}

func (s *CartStore) removeLocked(ctx context.Context, id string) {
	i := s.indexOf(id)
	if i < 0 {
		return
	}
	item := s.items[i]
	s.items = slices.Delete(s.items, i, i+1)

	s.tracker.Track(ctx, models.EventItemRemovedFromCart, models.Properties{
		"itemId":   id,
		"itemName": item.Name,
	})
}

func (s *CartStore) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(item models.CartItem) bool { return item.ID == id })
}
