package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ai-native-85/tinytummy/models"
	"github.com/ai-native-85/tinytummy/utils"
)

type ChildController struct {
	DB *gorm.DB
}

func NewChildController(db *gorm.DB) *ChildController {
	return &ChildController{DB: db}
}

type ChildInput struct {
	Name                string   `json:"name" binding:"required"`
	DateOfBirth         string   `json:"date_of_birth" binding:"required"`
	Gender              string   `json:"gender"`
	Region              string   `json:"region"`
	Language            string   `json:"language"`
	Allergies           []string           `json:"allergies"`
	DietaryRestrictions []string           `json:"dietary_restrictions"`
	CustomTargets       map[string]float64 `json:"custom_targets"`
}

func (h *ChildController) CreateChild(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input ChildInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dob, err := utils.ParseDate(input.DateOfBirth)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be YYYY-MM-DD"})
		return
	}
	if dob.After(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date_of_birth must be in the past"})
		return
	}

	allergies, _ := json.Marshal(input.Allergies)
	restrictions, _ := json.Marshal(input.DietaryRestrictions)

	child := models.Child{
		UserID:              userID,
		Name:                input.Name,
		DateOfBirth:         dob,
		Gender:              input.Gender,
		Region:              input.Region,
		Language:            input.Language,
		Allergies:           allergies,
		DietaryRestrictions: restrictions,
	}
	if len(input.CustomTargets) > 0 {
		targets, _ := json.Marshal(input.CustomTargets)
		child.CustomTargets = targets
	}
	if err := h.DB.Create(&child).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, child)
}

func (h *ChildController) ListChildren(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var children []models.Child
	if err := h.DB.Where("user_id = ?", userID).Order("created_at ASC").Find(&children).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, children)
}

func (h *ChildController) GetChild(c *gin.Context) {
	userID, ok := userIDFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	childID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var child models.Child
	if err := h.DB.Where("id = ? AND user_id = ?", childID, userID).First(&child).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	c.JSON(http.StatusOK, child)
}
