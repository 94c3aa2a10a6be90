package models

type CartItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// CartState is a point-in-time copy of the cart/quiz store.
type CartState struct {
	Items        []CartItem     `json:"items"`
	SelectedPlan string         `json:"selectedPlan,omitempty"`
	QuizAnswers  map[int]string `json:"quizAnswers"`
}

// Total is always recomputed from the items.
func (s CartState) Total() float64 {
	return CartTotal(s.Items)
}

func CartTotal(items []CartItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return total
}

// Order is the result of a simulated checkout.
type Order struct {
	ID        string     `json:"orderId"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"orderTotal"`
	SessionID string     `json:"sessionId"`
}
