package handlers

import (
	"errors"
	"log"
	"net/http"
	"printshop/internal/captcha"
	"printshop/internal/services"
	"printshop/internal/storage"

	"github.com/gin-gonic/gin"
)

type EstimateHandler struct {
	estimateService services.EstimateService
}

func NewEstimateHandler(estimateService services.EstimateService) *EstimateHandler {
	return &EstimateHandler{estimateService: estimateService}
}

// Quote serves the live calculator preview. It runs the same pricing
// function the submission path uses.
func (h *EstimateHandler) Quote(c *gin.Context) {
	var data services.CalculatorData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	breakdown, err := h.estimateService.Quote(&data)
	if err != nil {
		if errors.Is(err, services.ErrMaterialNotFound) || errors.Is(err, services.ErrFinishingNotFound) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Quote failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to calculate quote"})
		return
	}

	c.JSON(http.StatusOK, breakdown)
}

// Submit accepts a public estimate submission.
func (h *EstimateHandler) Submit(c *gin.Context) {
	var req services.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.RemoteIP = c.ClientIP()
	req.CreatedBy = 0

	estimate, err := h.estimateService.Submit(&req)
	if err != nil {
		h.renderSubmitError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"estimate_number": estimate.EstimateNumber,
		"estimate_id":     estimate.ID,
		"total_amount":    estimate.TotalAmount,
	})
}

// View returns the customer-facing estimate and marks a sent estimate as
// viewed on first access.
func (h *EstimateHandler) View(c *gin.Context) {
	number := c.Param("number")

	estimate, err := h.estimateService.ViewEstimateByNumber(number)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Estimate not found"})
		return
	}

	c.JSON(http.StatusOK, estimate)
}

func (h *EstimateHandler) renderSubmitError(c *gin.Context, err error) {
	var verrs services.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
	case errors.Is(err, captcha.ErrVerificationFailed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Anti-automation check failed", "code": "captcha_failed"})
	case errors.Is(err, storage.ErrFileTooLarge), errors.Is(err, storage.ErrFileTypeInvalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"file_data": err.Error()}})
	case errors.Is(err, services.ErrMaterialNotFound), errors.Is(err, services.ErrFinishingNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": gin.H{"calculator_data": err.Error()}})
	default:
		// Full detail stays server-side; the user gets a generic message.
		log.Printf("Estimate submission failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit estimate, please try again"})
	}
}
