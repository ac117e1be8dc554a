// controllers/reminder.go
package controllers

import (
	"net/http"
	"strconv"

	"appointment-notifier/services"
	"appointment-notifier/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// ReminderController exposes the worklist, manual runs and the delivery log.
type ReminderController struct {
	Service *services.ReminderService
}

// GetPendingAppointments returns the appointments a run would notify right now
func (rc *ReminderController) GetPendingAppointments(c *gin.Context) {
	worklist, err := rc.Service.Pending()
	if err != nil {
		utils.RespondWithError(c, utils.StatusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":        len(worklist),
		"appointments": worklist,
	})
}

// RunReminders selects and dispatches reminders immediately
func (rc *ReminderController) RunReminders(c *gin.Context) {
	summary, err := rc.Service.Run(c.Request.Context())
	if err != nil {
		utils.RespondWithError(c, utils.StatusForError(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetReminderLogs lists the most recent delivery attempts
func (rc *ReminderController) GetReminderLogs(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			utils.RespondWithError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLogLimit)
	}

	logs, err := rc.Service.Logs(c.Request.Context(), limit)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve reminder logs")
		return
	}

	c.JSON(http.StatusOK, logs)
}
