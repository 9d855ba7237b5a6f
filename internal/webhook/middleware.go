package webhook

import (
	"net/http"
	"strings"

	"leadfollowup_backend/internal/sms"
	"leadfollowup_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// SMSSignatureMiddleware rejects inbound SMS callbacks whose provider
// signature does not match. The signature covers the public callback URL, so
// publicBaseURL must be the externally visible origin when running behind a
// proxy.
func SMSSignatureMiddleware(authToken, publicBaseURL string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form body"})
			return
		}

		fullURL := callbackURL(c.Request, publicBaseURL)
		signature := c.GetHeader(sms.SignatureHeader)
		if !sms.VerifySignature(authToken, fullURL, c.Request.PostForm, signature) {
			log.Warn("rejected sms webhook with invalid signature", "ip", c.ClientIP(), "url", fullURL)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}

func callbackURL(r *http.Request, publicBaseURL string) string {
	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + r.URL.RequestURI()
}
