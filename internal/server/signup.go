package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	signupdomain "github.com/everafterhq/everafter/internal/signup/domain"
)

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func (s *Server) StartCheckout(c *gin.Context) {
	var req signupdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.signupSvc.StartCheckout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, checkoutResponse{
		SessionID: result.SessionID,
		URL:       result.URL,
	})
}

type verifyResponse struct {
	Success    bool   `json:"success"`
	Slug       string `json:"slug"`
	Redirect   string `json:"redirect"`
	Session    any    `json:"session,omitempty"`
	NeedsLogin bool   `json:"needsLogin,omitempty"`
}

func (s *Server) VerifyPayment(c *gin.Context) {
	var req signupdomain.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.SessionID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.signupSvc.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := verifyResponse{
		Success:    result.Success,
		Slug:       result.Slug,
		Redirect:   result.Redirect,
		NeedsLogin: result.NeedsLogin,
	}
	if result.Session != nil {
		resp.Session = result.Session
	}
	c.JSON(http.StatusOK, resp)
}
