// api/handlers/funnel_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fitfunnel/api/catalog"
	"fitfunnel/api/funnel"
	"fitfunnel/api/models"
	"fitfunnel/api/store"
)

// FunnelHandlers serve the cart, plan and quiz pages. Every route runs
// behind middleware.SessionRequired.
type FunnelHandlers struct {
	Catalog       *catalog.Catalog
	CheckoutDelay time.Duration
	logger        *zap.Logger
}

func NewFunnelHandlers(cat *catalog.Catalog, checkoutDelay time.Duration, logger *zap.Logger) *FunnelHandlers {
	return &FunnelHandlers{Catalog: cat, CheckoutDelay: checkoutDelay, logger: logger}
}

func (h *FunnelHandlers) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.Catalog)
}

func (h *FunnelHandlers) GetCart(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	c.JSON(http.StatusOK, cartResponse(f.Cart.Snapshot()))
}

func (h *FunnelHandlers) AddItem(c *gin.Context) {
	var req models.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	f := funnel.MustFromContext(c.Request.Context())
	if err := f.Cart.AddItem(c.Request.Context(), req.ID, req.Name, req.Price); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(f.Cart.Snapshot()))
}

func (h *FunnelHandlers) UpdateQuantity(c *gin.Context) {
	var req models.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	f := funnel.MustFromContext(c.Request.Context())
	f.Cart.UpdateQuantity(c.Request.Context(), c.Param("id"), *req.Quantity)
	c.JSON(http.StatusOK, cartResponse(f.Cart.Snapshot()))
}

func (h *FunnelHandlers) RemoveItem(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	f.Cart.RemoveItem(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, cartResponse(f.Cart.Snapshot()))
}

func (h *FunnelHandlers) ClearCart(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	f.Cart.ClearCart()
	c.JSON(http.StatusOK, cartResponse(f.Cart.Snapshot()))
}

func (h *FunnelHandlers) AddAddOn(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	added, err := funnel.AddAddOn(c.Request.Context(), f, h.Catalog, c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := cartResponse(f.Cart.Snapshot())
	resp["added"] = added
	c.JSON(http.StatusOK, resp)
}

func (h *FunnelHandlers) SelectPlan(c *gin.Context) {
	var req models.SelectPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	f := funnel.MustFromContext(c.Request.Context())
	if err := funnel.SelectPlan(c.Request.Context(), f, h.Catalog, req.PlanID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(f.Cart.Snapshot()))
}

func (h *FunnelHandlers) ContinueWithPlan(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	if err := funnel.ContinueWithPlan(c.Request.Context(), f, h.Catalog); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse(f.Cart.Snapshot()))
}

func (h *FunnelHandlers) StartQuiz(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	funnel.StartQuiz(c.Request.Context(), f, bindSource(c, "landing_page"))
	c.JSON(http.StatusOK, gin.H{"totalSteps": h.Catalog.TotalSteps()})
}

func (h *FunnelHandlers) ViewQuizStep(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	f := funnel.MustFromContext(c.Request.Context())
	q, err := funnel.ViewQuizStep(c.Request.Context(), f, h.Catalog, step)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"question": q, "totalSteps": h.Catalog.TotalSteps()}
	if answer, ok := f.Cart.QuizAnswers()[step]; ok {
		resp["answer"] = answer
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FunnelHandlers) AnswerQuizStep(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	var req models.QuizAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	f := funnel.MustFromContext(c.Request.Context())
	if err := funnel.AnswerQuizStep(c.Request.Context(), f, h.Catalog, step, req.Answer); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quizAnswers": f.Cart.QuizAnswers()})
}

func (h *FunnelHandlers) CompleteQuizStep(c *gin.Context) {
	step, ok := stepParam(c)
	if !ok {
		return
	}
	f := funnel.MustFromContext(c.Request.Context())
	done, err := funnel.CompleteQuizStep(c.Request.Context(), f, h.Catalog, step)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"completed": done}
	if !done {
		resp["nextStep"] = step + 1
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FunnelHandlers) AbandonQuiz(c *gin.Context) {
	var req models.AbandonQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	f := funnel.MustFromContext(c.Request.Context())
	funnel.AbandonQuiz(c.Request.Context(), f, req.Step)
	c.Status(http.StatusNoContent)
}

func (h *FunnelHandlers) ViewLanding(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	funnel.ViewLanding(c.Request.Context(), f, bindSource(c, "direct"))
	c.Status(http.StatusNoContent)
}

func (h *FunnelHandlers) ViewPlans(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	funnel.ViewPlans(c.Request.Context(), f, h.Catalog)
	c.JSON(http.StatusOK, gin.H{
		"plans":        h.Catalog.Plans,
		"addOns":       h.Catalog.AddOns,
		"selectedPlan": f.Cart.SelectedPlan(),
	})
}

func (h *FunnelHandlers) ViewCart(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	state := funnel.ViewCart(c.Request.Context(), f, bindSource(c, "direct"))
	c.JSON(http.StatusOK, cartResponse(state))
}

func (h *FunnelHandlers) Checkout(c *gin.Context) {
	f := funnel.MustFromContext(c.Request.Context())
	order, err := funnel.Checkout(c.Request.Context(), f, h.CheckoutDelay)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("Checkout completed",
		zap.String("funnel_id", f.ID),
		zap.String("order_id", order.ID),
		zap.Float64("order_total", order.Total),
	)
	c.JSON(http.StatusOK, order)
}

func (h *FunnelHandlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, funnel.ErrUnknownPlan),
		errors.Is(err, funnel.ErrUnknownAddOn),
		errors.Is(err, funnel.ErrUnknownStep):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, funnel.ErrEmptyCart),
		errors.Is(err, funnel.ErrNoPlanSelected),
		errors.Is(err, funnel.ErrNoAnswer):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, funnel.ErrUnknownAnswer),
		errors.Is(err, store.ErrInvalidStep),
		errors.Is(err, store.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled"})
	default:
		h.logger.Error("Funnel operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func cartResponse(state models.CartState) gin.H {
	return gin.H{
		"items":        state.Items,
		"selectedPlan": state.SelectedPlan,
		"quizAnswers":  state.QuizAnswers,
		"total":        state.Total(),
	}
}

// stepParam parses :step, answering 400 itself when it is not a number.
func stepParam(c *gin.Context) (int, bool) {
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quiz step must be an integer"})
		return 0, false
	}
	return step, true
}

// bindSource reads an optional {"source": ...} body.
func bindSource(c *gin.Context, fallback string) string {
	var req models.SourceRequest
	if c.Request.ContentLength > 0 {
		_ = c.ShouldBindJSON(&req)
	}
	if req.Source == "" {
		return fallback
	}
	return req.Source
}
