package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie names the cookie that identifies a shopper's client storage.
const SessionCookie = "grocery_session"

const (
	clientIDKey   = "client_id"
	sessionMaxAge = 30 * 24 * 60 * 60
)

// ClientSession assigns every request a client id, minting one on first visit.
func ClientSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || !validClientID(id) {
			id = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, id, sessionMaxAge, "/", "", false, true)
		c.Set(clientIDKey, id)
		c.Next()
	}
}

func clientID(c *gin.Context) string {
	return c.GetString(clientIDKey)
}

func validClientID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
