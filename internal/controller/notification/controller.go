// Package notification provides HTTP handlers for reading notifications
// and the realtime notification stream.
package notification

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/logger"
	"Fixer-backend/internal/notification"
	"Fixer-backend/internal/repository"
	"Fixer-backend/internal/utilities"
)

// NotificationController handles notification endpoints
type NotificationController struct {
	Dispatcher *notification.Dispatcher
	Hub        *notification.Hub
	Log        logger.Logger
}

// NewNotificationController creates a new instance of NotificationController.
// hub may be nil, then the stream endpoint answers 503.
func NewNotificationController(d *notification.Dispatcher, hub *notification.Hub, log logger.Logger) *NotificationController {
	return &NotificationController{
		Dispatcher: d,
		Hub:        hub,
		Log:        log,
	}
}

// UnreadCountResponse type for swagger docs
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}

// UpdatedResponse type for swagger docs
type UpdatedResponse struct {
	Updated int64 `json:"updated"`
}

// ListHandler pages through the caller's notifications, newest first.
// @Summary List my notifications
// @Tags Notification
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param unread query boolean false "Only unread notifications"
// @Param limit query int false "Page size, at most 100"
// @Param offset query int false "Number of notifications to skip"
// @Success 200 {array} model.Notification "Notifications"
// @Failure 400 {object} utilities.ErrorResponse "Invalid paging"
// @Router /notifications [get]
func (nc *NotificationController) ListHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	f := repository.NotificationFilter{UnreadOnly: c.Query("unread") == "true"}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			utilities.RespondError(c, nc.Log, apperror.Validation("invalid %s", name))
			return
		}
		*dst = v
	}

	list, err := nc.Dispatcher.List(c.Request.Context(), caller.UserID, f)
	if err != nil {
		utilities.RespondError(c, nc.Log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// UnreadCountHandler counts the caller's unread notifications.
// @Summary Count unread notifications
// @Tags Notification
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Success 200 {object} UnreadCountResponse "Unread count"
// @Router /notifications/unread-count [get]
func (nc *NotificationController) UnreadCountHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	count, err := nc.Dispatcher.UnreadCount(c.Request.Context(), caller.UserID)
	if err != nil {
		utilities.RespondError(c, nc.Log, err)
		return
	}
	c.JSON(http.StatusOK, UnreadCountResponse{Count: count})
}

// MarkReadHandler marks one notification as read.
// @Summary Mark notification as read
// @Tags Notification
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Notification ID"
// @Success 200 {object} model.Notification "Updated notification"
// @Failure 403 {object} utilities.ErrorResponse "Notification of another user"
// @Failure 404 {object} utilities.ErrorResponse "Notification not found"
// @Router /notifications/{id}/read [patch]
func (nc *NotificationController) MarkReadHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, nc.Log, err)
		return
	}

	n, err := nc.Dispatcher.MarkRead(c.Request.Context(), caller.UserID, id)
	if err != nil {
		utilities.RespondError(c, nc.Log, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// MarkAllReadHandler marks every notification of the caller as read.
// @Summary Mark all notifications as read
// @Tags Notification
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Success 200 {object} UpdatedResponse "Number of notifications updated"
// @Router /notifications/read-all [patch]
func (nc *NotificationController) MarkAllReadHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}

	updated, err := nc.Dispatcher.MarkAllRead(c.Request.Context(), caller.UserID)
	if err != nil {
		utilities.RespondError(c, nc.Log, err)
		return
	}
	c.JSON(http.StatusOK, UpdatedResponse{Updated: updated})
}

// DeleteHandler removes one notification.
// @Summary Delete notification
// @Tags Notification
// @Produce json
// @Param Authorization header string true "Insert your access token" default(Bearer <your access token>)
// @Param id path int true "Notification ID"
// @Success 200 {object} utilities.MessageResponse "Deleted"
// @Failure 403 {object} utilities.ErrorResponse "Notification of another user"
// @Failure 404 {object} utilities.ErrorResponse "Notification not found"
// @Router /notifications/{id} [delete]
func (nc *NotificationController) DeleteHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	id, err := utilities.ParseID(c, "id")
	if err != nil {
		utilities.RespondError(c, nc.Log, err)
		return
	}

	if err := nc.Dispatcher.Delete(c.Request.Context(), caller.UserID, id); err != nil {
		utilities.RespondError(c, nc.Log, err)
		return
	}
	c.JSON(http.StatusOK, utilities.MessageResponse{Message: "Notification deleted"})
}

// StreamHandler upgrades to a websocket that receives the caller's new notifications.
// @Summary Realtime notification stream
// @Tags Notification
// @Param Authorization header string false "Access token; the session cookie is accepted too" default(Bearer <your access token>)
// @Success 101 {string} string "Switching protocols"
// @Failure 503 {object} utilities.ErrorResponse "Realtime delivery disabled"
// @Router /ws/notifications [get]
func (nc *NotificationController) StreamHandler(c *gin.Context) {
	caller, err := utilities.ExtractCaller(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utilities.ErrorResponse{Error: err.Error()})
		return
	}
	if nc.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, utilities.ErrorResponse{
			Error: "Realtime notifications are disabled",
			Code:  string(apperror.CodeServiceUnavailable),
		})
		return
	}

	// Upgrade writes its own error response.
	if err := nc.Hub.Serve(caller.UserID, c.Writer, c.Request); err != nil {
		nc.Log.Debug("websocket upgrade failed", map[string]interface{}{
			"user_id": caller.UserID,
			"error":   err.Error(),
		})
	}
}
