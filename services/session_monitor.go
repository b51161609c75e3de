package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/realtime"
	"github.com/qrdine/qrdine/statemachine"
	"github.com/qrdine/qrdine/utils"
)

// SessionMonitor closes dining sessions that were left open after every
// order reached a terminal state and nothing happened for IdleTimeout.
// The table goes dirty so staff know to bus it.
type SessionMonitor struct {
	DB          *gorm.DB
	Hub         *realtime.Hub
	Interval    time.Duration
	IdleTimeout time.Duration
	stopChan    chan struct{}
}

func NewSessionMonitor(db *gorm.DB, hub *realtime.Hub) *SessionMonitor {
	return &SessionMonitor{
		DB:          db,
		Hub:         hub,
		Interval:    time.Minute,
		IdleTimeout: 2 * time.Hour,
		stopChan:    make(chan struct{}),
	}
}

func (sm *SessionMonitor) Start() {
	go func() {
		ticker := time.NewTicker(sm.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sm.closeIdleSessions()
			case <-sm.stopChan:
				return
			}
		}
	}()
}

func (sm *SessionMonitor) Stop() {
	close(sm.stopChan)
}

func (sm *SessionMonitor) closeIdleSessions() {
	var sessions []models.DiningSession
	if err := sm.DB.Where("status = ?", "active").Find(&sessions).Error; err != nil {
		utils.ErrorLogger.Printf("session monitor: list sessions: %v", err)
		return
	}

	now := time.Now()
	for _, session := range sessions {
		var orders []models.Order
		if err := sm.DB.Where("session_id = ?", session.ID).Find(&orders).Error; err != nil {
			utils.ErrorLogger.Printf("session monitor: list orders for session %d: %v", session.ID, err)
			continue
		}

		lastActivity := session.CreatedAt
		open := false
		for _, order := range orders {
			if !statemachine.Terminal(statemachine.Status(order.Status)) {
				open = true
				break
			}
			if order.UpdatedAt.After(lastActivity) {
				lastActivity = order.UpdatedAt
			}
		}
		if open || now.Sub(lastActivity) < sm.IdleTimeout {
			continue
		}

		session.Status = "closed"
		session.ClosedAt = &now
		if err := sm.DB.Save(&session).Error; err != nil {
			utils.ErrorLogger.Printf("session monitor: close session %d: %v", session.ID, err)
			continue
		}

		var table models.Table
		if err := sm.DB.First(&table, session.TableID).Error; err == nil {
			table.Status = "dirty"
			sm.DB.Save(&table)
			sm.Hub.BroadcastTableUpdate(table)
		}
		sm.Hub.BroadcastSessionUpdate(session)

		utils.InfoLogger.Printf("session monitor: closed idle session %d", session.ID)
	}
}
