package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/MphoBeeThwala/ahava-healthcare/internal/payment/domain"
)

type createPaymentRequest struct {
	VisitID       string `json:"visitId"`
	AmountInCents int64  `json:"amountInCents"`
	Currency      string `json:"currency"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	visitID, err := snowflake.ParseString(req.VisitID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payment, err := s.paymentSvc.CreatePayment(c.Request.Context(), visitID, req.AmountInCents, req.Currency)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": payment})
}

type initializePaymentRequest struct {
	Email       string `json:"email"`
	CallbackURL string `json:"callbackUrl"`
}

func (s *Server) InitializePayment(c *gin.Context) {
	paymentID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req initializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		if user := currentUser(c); user != nil {
			email = user.Email
		}
	}
	if email == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.paymentSvc.Initialize(c.Request.Context(), paymentID, email, strings.TrimSpace(req.CallbackURL))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authorizationUrl": result.AuthorizationURL,
		"accessCode":       result.AccessCode,
		"reference":        result.Reference,
	})
}

// VerifyPayment re-checks a transaction against the gateway and
// settles the payment, mirroring the outcome onto the booking.
func (s *Server) VerifyPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	if reference == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.paymentSvc.ConfirmCharge(c.Request.Context(), reference); err != nil {
		AbortWithError(c, err)
		return
	}

	payment, err := s.paymentSvc.FindByReference(c.Request.Context(), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

type refundPaymentRequest struct {
	Reason        string `json:"reason"`
	AmountInCents *int64 `json:"amountInCents"`
}

func (s *Server) RefundPayment(c *gin.Context) {
	paymentID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req refundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	payment, err := s.paymentSvc.Refund(c.Request.Context(), paymentID, strings.TrimSpace(req.Reason), req.AmountInCents)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment})
}

func (s *Server) ListMyPayments(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	payments, err := s.paymentSvc.ListUserPayments(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if payments == nil {
		payments = []paymentdomain.Payment{}
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}
