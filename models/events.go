package models

// Canonical event names. These strings are shared across every sink and
// must not change.
const (
	EventLandingPageViewed = "Landing Page Viewed"
	EventCTAClicked        = "CTA Clicked"

	EventQuizStarted        = "Quiz Started"
	EventQuizStepViewed     = "Quiz Step Viewed"
	EventQuizAnswerSelected = "Quiz Answer Selected"
	EventQuizStepCompleted  = "Quiz Step Completed"
	EventQuizCompleted      = "Quiz Completed"
	EventQuizAbandoned      = "Quiz Abandoned"

	EventPlansViewed  = "Plans Viewed"
	EventPlanSelected = "Plan Selected"
	EventPlanChanged  = "Plan Changed"

	EventCartViewed          = "Cart Viewed"
	EventItemAddedToCart     = "Item Added to Cart"
	EventItemRemovedFromCart = "Item Removed from Cart"
	EventCartUpdated         = "Cart Updated"
	EventCheckoutStarted     = "Checkout Started"
	EventCheckoutCompleted   = "Checkout Completed"

	EventButtonClicked = "Button Clicked"
	EventErrorOccurred = "Error Occurred"
	EventPageViewed    = "Page Viewed"
)

// Lifecycle broadcasts emitted by the analytics facade itself.
const (
	EventAnalyticsInitialized = "Analytics Initialized"
	EventAnalyticsReset       = "Analytics Reset"
)

var catalog = map[string]struct{}{
	EventLandingPageViewed: {}, EventCTAClicked: {},
	EventQuizStarted: {}, EventQuizStepViewed: {}, EventQuizAnswerSelected: {},
	EventQuizStepCompleted: {}, EventQuizCompleted: {}, EventQuizAbandoned: {},
	EventPlansViewed: {}, EventPlanSelected: {}, EventPlanChanged: {},
	EventCartViewed: {}, EventItemAddedToCart: {}, EventItemRemovedFromCart: {},
	EventCartUpdated: {}, EventCheckoutStarted: {}, EventCheckoutCompleted: {},
	EventButtonClicked: {}, EventErrorOccurred: {}, EventPageViewed: {},
}

// IsCanonicalEvent reports whether name is in the shared event catalog.
func IsCanonicalEvent(name string) bool {
	_, ok := catalog[name]
	return ok
}
