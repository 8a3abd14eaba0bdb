package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleWebhook ingests a provider callback. The contract is HTTP 200
// for every delivery that passed signature checks, success flag in the
// body, so the provider never retries a payload we have durably
// recorded. Missing signature is 400, forged signature is 401; neither
// leaves a row behind.
func (s *Server) HandleWebhook(c *gin.Context) {
	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	if provider != "paystack" {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown provider"})
		return
	}

	if !s.limiter.WebhookAllowed(c.Request.Context(), c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "error": "rate limited"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	signature := strings.TrimSpace(c.GetHeader("x-" + provider + "-signature"))
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing signature"})
		return
	}
	if !s.gateway.VerifySignature(payload, signature) {
		s.log.Warn("webhook signature rejected",
			zap.String("provider", provider),
			zap.String("ip", c.ClientIP()),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name, values := range c.Request.Header {
		key := strings.ToLower(name)
		// Credentials never land in the audit row.
		if key == "authorization" || key == "cookie" {
			continue
		}
		headers[key] = strings.Join(values, ", ")
	}
	result, err := s.webhookSvc.Ingest(c.Request.Context(), provider, payload, signature, headers)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error()})
		return
	}
	if result.Duplicate {
		c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListWebhookEvents returns the most recent deliveries for admin
// inspection.
func (s *Server) ListWebhookEvents(c *gin.Context) {
	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	events, err := s.webhookSvc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": len(events), "events": events})
}
