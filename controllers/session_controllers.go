package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/realtime"
	"github.com/qrdine/qrdine/utils"
)

type SessionController struct {
	DB  *gorm.DB
	Hub *realtime.Hub
}

func NewSessionController(db *gorm.DB, hub *realtime.Hub) *SessionController {
	return &SessionController{DB: db, Hub: hub}
}

// StartSession -> customer scanned a table QR. Returns the active
// session if one exists, otherwise opens one and occupies the table.
func (sc *SessionController) StartSession(c *gin.Context) {
	var table models.Table
	if err := sc.DB.First(&table, "table_number = ?", c.Param("table_no")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var session models.DiningSession
	err := sc.DB.Where("table_id = ? AND status = ?", table.ID, "active").First(&session).Error
	if err == nil {
		utils.RespondJSON(c, http.StatusOK, "Active session", session)
		return
	}

	if table.Status == "dirty" {
		utils.RespondError(c, http.StatusConflict, ErrTableOccupied)
		return
	}

	session = models.DiningSession{
		SessionKey: uuid.NewString(),
		TableID:    table.ID,
		Status:     "active",
	}
	if err := sc.DB.Create(&session).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	table.Status = "occupied"
	if err := sc.DB.Save(&table).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Session %s opened at table %d", session.SessionKey, table.TableNumber)

	sc.Hub.BroadcastTableUpdate(table)
	sc.Hub.BroadcastSessionUpdate(session)

	utils.RespondJSON(c, http.StatusCreated, "Session started", session)
}

// GetActiveSession -> check whether the table has an open session
func (sc *SessionController) GetActiveSession(c *gin.Context) {
	var table models.Table
	if err := sc.DB.First(&table, "table_number = ?", c.Param("table_no")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var session models.DiningSession
	if err := sc.DB.Where("table_id = ? AND status = ?", table.ID, "active").First(&session).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, ErrNoActiveSession)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Active session", session)
}

// GetAllSessions -> staff view, optional ?status= filter
func (sc *SessionController) GetAllSessions(c *gin.Context) {
	query := sc.DB.Preload("Table").Order("created_at desc")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var sessions []models.DiningSession
	if err := query.Find(&sessions).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of sessions", sessions)
}

// CloseSession -> guests left; the table goes dirty until bussed
func (sc *SessionController) CloseSession(c *gin.Context) {
	var session models.DiningSession
	if err := sc.DB.First(&session, "id = ?", c.Param("session_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if session.Status != "active" {
		utils.RespondError(c, http.StatusConflict, &CustomError{"session already closed"})
		return
	}

	now := time.Now()
	session.Status = "closed"
	session.ClosedAt = &now
	if err := sc.DB.Save(&session).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var table models.Table
	if err := sc.DB.First(&table, session.TableID).Error; err == nil {
		table.Status = "dirty"
		sc.DB.Save(&table)
		sc.Hub.BroadcastTableUpdate(table)
	}

	sc.Hub.BroadcastSessionUpdate(session)
	utils.RespondJSON(c, http.StatusOK, "Session closed", session)
}
