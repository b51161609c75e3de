package controllers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/realtime"
	"github.com/qrdine/qrdine/utils"
)

type TableController struct {
	DB      *gorm.DB
	Hub     *realtime.Hub
	BaseURL string // prefix for QR payload URLs
}

func NewTableController(db *gorm.DB, hub *realtime.Hub, baseURL string) *TableController {
	return &TableController{DB: db, Hub: hub, BaseURL: baseURL}
}

type tableResponse struct {
	models.Table
	QRPayload string `json:"qr_payload"`
}

func (tc *TableController) withQR(t models.Table) tableResponse {
	return tableResponse{Table: t, QRPayload: t.QRPayload(tc.BaseURL)}
}

// GetAllTables -> every table with its QR payload string
func (tc *TableController) GetAllTables(c *gin.Context) {
	var tables []models.Table
	if err := tc.DB.Order("table_number asc").Find(&tables).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = tc.withQR(t)
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", resp)
}

// CreateTables -> create one table, or `count` tables numbered after the
// current highest (bulk add)
func (tc *TableController) CreateTables(c *gin.Context) {
	type reqBody struct {
		TableNumber int `json:"table_number"`
		Count       int `json:"count"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.TableNumber == 0 && req.Count == 0 {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("table_number or count is required"))
		return
	}

	var created []models.Table

	if req.TableNumber != 0 {
		table := models.Table{TableNumber: req.TableNumber, Status: "available"}
		if err := tc.DB.Create(&table).Error; err != nil {
			utils.RespondError(c, http.StatusConflict, fmt.Errorf("table %d already exists", req.TableNumber))
			return
		}
		created = append(created, table)
	} else {
		var maxNumber int
		tc.DB.Model(&models.Table{}).Select("COALESCE(MAX(table_number), 0)").Scan(&maxNumber)
		for i := 1; i <= req.Count; i++ {
			table := models.Table{TableNumber: maxNumber + i, Status: "available"}
			if err := tc.DB.Create(&table).Error; err != nil {
				utils.RespondError(c, http.StatusInternalServerError, err)
				return
			}
			created = append(created, table)
		}
	}

	resp := make([]tableResponse, len(created))
	for i, t := range created {
		resp[i] = tc.withQR(t)
		tc.Hub.BroadcastTableUpdate(t)
	}
	utils.RespondJSON(c, http.StatusCreated, "Tables created", resp)
}

// UpdateTableStatus -> available/occupied/dirty
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	var table models.Table
	if err := tc.DB.First(&table, "id = ?", c.Param("table_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	type reqBody struct {
		Status string `json:"status" binding:"required,oneof=available occupied dirty"`
	}
	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	table.Status = req.Status
	if err := tc.DB.Save(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tc.Hub.BroadcastTableUpdate(table)
	utils.RespondJSON(c, http.StatusOK, "Table updated", tc.withQR(table))
}

// MarkTableClean -> dirty tables back to available after bussing
func (tc *TableController) MarkTableClean(c *gin.Context) {
	var table models.Table
	if err := tc.DB.First(&table, "id = ?", c.Param("table_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if table.Status != "dirty" {
		utils.RespondError(c, http.StatusConflict, fmt.Errorf("table %d is not dirty", table.TableNumber))
		return
	}

	table.Status = "available"
	if err := tc.DB.Save(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	tc.Hub.BroadcastTableUpdate(table)
	utils.RespondJSON(c, http.StatusOK, "Table cleaned", tc.withQR(table))
}

func (tc *TableController) DeleteTable(c *gin.Context) {
	var table models.Table
	if err := tc.DB.First(&table, "id = ?", c.Param("table_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if table.Status == "occupied" {
		utils.RespondError(c, http.StatusConflict, ErrTableOccupied)
		return
	}

	if err := tc.DB.Delete(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted", gin.H{"table_id": table.ID})
}
