package controllers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/naijamart/storefront-backend/api/validators"
	"github.com/naijamart/storefront-backend/internal/notifications"
	pkgerrors "github.com/naijamart/storefront-backend/pkg/errors"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

const notificationsName = "notifications service"

// ListNotifications pages through the caller's in-app inbox. unreadOnly=true
// hides notifications already read.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc != nil, notificationsName, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		page, err := pageParams(r)
		if err != nil {
			return nil, err
		}
		unreadOnly, err := queryBool(r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{
			UserID:     userID,
			Limit:      page.Limit,
			Cursor:     page.Cursor,
			UnreadOnly: unreadOnly,
		})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc != nil, notificationsName, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		id, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), userID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return userHandler(svc != nil, notificationsName, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		updated, err := svc.MarkAllRead(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key+" value")
	}
	return v, nil
}
