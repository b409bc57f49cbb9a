package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"printshop/internal/models"
	"printshop/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminHandler struct {
	estimateService services.EstimateService
}

func NewAdminHandler(estimateService services.EstimateService) *AdminHandler {
	return &AdminHandler{estimateService: estimateService}
}

// ListEstimates returns a paginated estimate list with items nested.
func (h *AdminHandler) ListEstimates(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	estimates, total, err := h.estimateService.ListEstimates(page, perPage)
	if err != nil {
		log.Printf("Failed to list estimates: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list estimates"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"estimates": estimates,
		"total":     total,
		"page":      page,
		"per_page":  perPage,
	})
}

func (h *AdminHandler) GetEstimate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid estimate ID"})
		return
	}

	estimate, err := h.estimateService.GetEstimateByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Estimate not found"})
		return
	}

	c.JSON(http.StatusOK, estimate)
}

// CreateEstimate lets an admin record a manual estimate through the same
// submission path the public form uses.
func (h *AdminHandler) CreateEstimate(c *gin.Context) {
	var req services.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.Source = services.SourceManual
	req.AntiAutomationToken = ""
	if session := SessionFrom(c); session != nil {
		req.CreatedBy = session.UserID
	}

	estimate, err := h.estimateService.Submit(&req)
	if err != nil {
		var verrs services.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
			return
		}
		log.Printf("Admin estimate creation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create estimate"})
		return
	}

	c.JSON(http.StatusCreated, estimate)
}

type updateItemsRequest struct {
	Items          []services.SubmissionItem `json:"items"`
	TaxRate        float64                   `json:"tax_rate"`
	DiscountAmount float64                   `json:"discount_amount"`
}

// UpdateItems replaces an estimate's full line-item set and recomputes
// the stored totals.
func (h *AdminHandler) UpdateItems(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid estimate ID"})
		return
	}

	var req updateItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	estimate, err := h.estimateService.UpdateItems(uint(id), req.Items, req.TaxRate, req.DiscountAmount)
	if err != nil {
		var verrs services.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": verrs})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Estimate not found"})
		default:
			log.Printf("Failed to update estimate items: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update estimate"})
		}
		return
	}

	c.JSON(http.StatusOK, estimate)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid estimate ID"})
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	// Closing out an estimate is reserved for admins; staff handle the
	// send/view stages.
	if req.Status == string(models.EstimateAccepted) || req.Status == string(models.EstimateRejected) {
		if session := SessionFrom(c); session == nil || session.Role != string(models.RoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
	}

	estimate, err := h.estimateService.UpdateStatus(uint(id), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatusTransition):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid status transition"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Estimate not found"})
		default:
			log.Printf("Failed to update estimate status: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update status"})
		}
		return
	}

	c.JSON(http.StatusOK, estimate)
}

func (h *AdminHandler) DeleteEstimate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid estimate ID"})
		return
	}

	if err := h.estimateService.DeleteEstimate(uint(id)); err != nil {
		log.Printf("Failed to delete estimate: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete estimate"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
