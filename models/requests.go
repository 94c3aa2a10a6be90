package models

// Request bodies accepted by the HTTP API.

type IdentifyRequest struct {
	UserID string     `json:"userId" binding:"required"`
	Traits Properties `json:"traits"`
}

type TrackRequest struct {
	Event      string     `json:"event" binding:"required"`
	Properties Properties `json:"properties"`
}

type PageRequest struct {
	Name       string     `json:"name" binding:"required"`
	Properties Properties `json:"properties"`
	// Native additionally forwards the hit to each sink's own page call.
	Native bool `json:"native"`
}

type AddItemRequest struct {
	ID    string  `json:"id" binding:"required"`
	Name  string  `json:"name" binding:"required"`
	Price float64 `json:"price" binding:"required,gt=0"`
}

type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type SelectPlanRequest struct {
	PlanID string `json:"planId" binding:"required"`
}

type QuizAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

type AbandonQuizRequest struct {
	Step int `json:"step" binding:"required,gte=1"`
}

type SourceRequest struct {
	Source string `json:"source"`
}
