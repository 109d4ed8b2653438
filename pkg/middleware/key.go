package middleware

import "github.com/gin-gonic/gin"

// ClaimsKey is where AuthMiddleware stores the verified token claims.
const ClaimsKey = "claims"

// Subject returns the authenticated subject, or "" for anonymous requests.
func Subject(c *gin.Context) string {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return ""
	}
	cm, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	sub, _ := cm["sub"].(string)
	return sub
}

// limiterKey prefers the token subject so users behind one NAT do not share
// a bucket, and falls back to the client IP.
func limiterKey(c *gin.Context) string {
	if sub := Subject(c); sub != "" {
		return "sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
