package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/safezone-backend/internal/middleware"
)

func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
