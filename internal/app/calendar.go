package app

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GET /api/calendar/auth?user_id=N
// Starts the Google Calendar connect flow for a host.
func (a *App) GoogleAuthHandler(c *gin.Context) {
	if !a.Calendar.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "calendar integration not configured"})
		return
	}
	hostID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || hostID < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	if _, err := a.Store.GetHost(c.Request.Context(), hostID); err != nil {
		a.fail(c, err)
		return
	}

	state := fmt.Sprintf("host_%d_%d", hostID, time.Now().Unix())
	c.JSON(http.StatusOK, gin.H{
		"auth_url": a.Calendar.AuthURL(state),
		"state":    state,
	})
}

// GET /oauth2callback
// Completes the connect flow: exchanges the code and stores the host's tokens.
func (a *App) GoogleOAuth2CallbackHandler(c *gin.Context) {
	if !a.Calendar.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "calendar integration not configured"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}
	hostID, err := hostIDFromState(c.Query("state"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}

	if err := a.Calendar.Exchange(c.Request.Context(), hostID, code); err != nil {
		a.Logger.Error("calendar token exchange failed", "host_id", hostID, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "token exchange failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "calendar connected", "user_id": hostID})
}

func hostIDFromState(state string) (int64, error) {
	parts := strings.Split(state, "_")
	if len(parts) != 3 || parts[0] != "host" {
		return 0, fmt.Errorf("malformed state %q", state)
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("malformed state %q", state)
	}
	return id, nil
}
