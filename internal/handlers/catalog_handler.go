package handlers

import (
	"log"
	"net/http"
	"strconv"

	"printshop/internal/models"
	"printshop/internal/services"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService services.CatalogService
}

func NewCatalogHandler(catalogService services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// Public catalog endpoints feeding the calculator UI.

func (h *CatalogHandler) ListMaterials(c *gin.Context) {
	materials, err := h.catalogService.ListMaterials()
	if err != nil {
		log.Printf("Failed to list materials: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list materials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"materials": materials})
}

func (h *CatalogHandler) ListFinishingOptions(c *gin.Context) {
	options, err := h.catalogService.ListFinishingOptions()
	if err != nil {
		log.Printf("Failed to list finishing options: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list finishing options"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"finishing_options": options})
}

// Admin catalog management.

func (h *CatalogHandler) SaveMaterial(c *gin.Context) {
	var material models.Material
	if err := c.ShouldBindJSON(&material); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if material.Name == "" || material.PricePerKg <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Name and a positive price per kg are required"})
		return
	}

	if err := h.catalogService.SaveMaterial(&material); err != nil {
		log.Printf("Failed to save material: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save material"})
		return
	}
	c.JSON(http.StatusOK, material)
}

func (h *CatalogHandler) DeleteMaterial(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid material ID"})
		return
	}
	if err := h.catalogService.DeleteMaterial(uint(id)); err != nil {
		log.Printf("Failed to delete material: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete material"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *CatalogHandler) SaveFinishingOption(c *gin.Context) {
	var option models.FinishingOption
	if err := c.ShouldBindJSON(&option); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if option.Name == "" || option.Fee < 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Name and a non-negative fee are required"})
		return
	}

	if err := h.catalogService.SaveFinishingOption(&option); err != nil {
		log.Printf("Failed to save finishing option: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save finishing option"})
		return
	}
	c.JSON(http.StatusOK, option)
}

func (h *CatalogHandler) DeleteFinishingOption(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid finishing option ID"})
		return
	}
	if err := h.catalogService.DeleteFinishingOption(uint(id)); err != nil {
		log.Printf("Failed to delete finishing option: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete finishing option"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *CatalogHandler) ListSettings(c *gin.Context) {
	settings, err := h.catalogService.Settings()
	if err != nil {
		log.Printf("Failed to list settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list settings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *CatalogHandler) UpdateSetting(c *gin.Context) {
	var setting models.SiteSetting
	if err := c.ShouldBindJSON(&setting); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if setting.SettingKey == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Setting key is required"})
		return
	}
	if session := SessionFrom(c); session != nil {
		setting.UpdatedBy = session.UserID
	}

	if err := h.catalogService.UpdateSetting(&setting); err != nil {
		log.Printf("Failed to update setting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting"})
		return
	}
	c.JSON(http.StatusOK, setting)
}
