package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Cookie writes and clears the session cookie.
type Cookie struct {
	Name   string
	Secure bool
}

func (ck Cookie) Set(c *gin.Context, id string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, id, int(ttl.Seconds()), "/", "", ck.Secure, true)
}

func (ck Cookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ck.Name, "", -1, "/", "", ck.Secure, true)
}

// Read returns the session id carried by the request, if any.
func (ck Cookie) Read(c *gin.Context) string {
	id, err := c.Cookie(ck.Name)
	if err != nil {
		return ""
	}
	return id
}
