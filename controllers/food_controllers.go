package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/utils"
)

type FoodController struct {
	DB *gorm.DB
}

func NewFoodController(db *gorm.DB) *FoodController {
	return &FoodController{DB: db}
}

// GetAllFoods -> full menu; ?category= and ?available=true filters
func (fc *FoodController) GetAllFoods(c *gin.Context) {
	query := fc.DB.Order("category asc, name asc")
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}
	if c.Query("available") == "true" {
		query = query.Where("availability = ?", true)
	}

	var foods []models.Food
	if err := query.Find(&foods).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of foods", foods)
}

// GetAvailableFoods -> customer-facing menu, available items only
func (fc *FoodController) GetAvailableFoods(c *gin.Context) {
	var foods []models.Food
	if err := fc.DB.Where("availability = ?", true).
		Order("category asc, name asc").
		Find(&foods).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu", foods)
}

func (fc *FoodController) CreateFood(c *gin.Context) {
	type reqBody struct {
		Name        string  `json:"name" binding:"required"`
		Category    string  `json:"category" binding:"required"`
		Price       float64 `json:"price" binding:"required"`
		Description string  `json:"description"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	food := models.Food{
		Name:         req.Name,
		Category:     req.Category,
		Price:        req.Price,
		Description:  req.Description,
		Availability: true,
	}
	if err := fc.DB.Create(&food).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Food created", food)
}

func (fc *FoodController) GetFoodByID(c *gin.Context) {
	var food models.Food
	if err := fc.DB.First(&food, "id = ?", c.Param("food_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Food detail", food)
}

// UpdateFood -> partial update; price changes never touch the Name/Price
// snapshots on existing order items
func (fc *FoodController) UpdateFood(c *gin.Context) {
	var food models.Food
	if err := fc.DB.First(&food, "id = ?", c.Param("food_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	type reqBody struct {
		Name         *string  `json:"name"`
		Category     *string  `json:"category"`
		Price        *float64 `json:"price"`
		Description  *string  `json:"description"`
		Availability *bool    `json:"availability"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if req.Name != nil {
		food.Name = *req.Name
	}
	if req.Category != nil {
		food.Category = *req.Category
	}
	if req.Price != nil {
		food.Price = *req.Price
	}
	if req.Description != nil {
		food.Description = *req.Description
	}
	if req.Availability != nil {
		food.Availability = *req.Availability
	}

	if err := fc.DB.Save(&food).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Food updated", food)
}

func (fc *FoodController) ToggleAvailability(c *gin.Context) {
	var food models.Food
	if err := fc.DB.First(&food, "id = ?", c.Param("food_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	food.Availability = !food.Availability
	if err := fc.DB.Save(&food).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Availability updated", food)
}

func (fc *FoodController) DeleteFood(c *gin.Context) {
	if err := fc.DB.Delete(&models.Food{}, "id = ?", c.Param("food_id")).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Food deleted", gin.H{"food_id": c.Param("food_id")})
}
