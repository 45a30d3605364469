package sandbox

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-storefront-checkout/internal/storefront"
	"github.com/imrishuroy/go-storefront-checkout/internal/validation"
)

func (s *Server) login(c *gin.Context) {
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}
	token := s.accounts.Login(req.Email, req.Name)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"token": token}})
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.accounts.Profile(userID(c))
	if err != nil {
		fail(c, http.StatusNotFound, "not_found", "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p})
}

func (s *Server) createAddress(c *gin.Context) {
	var req storefront.Address
	if err := validation.BindAndValidate(c, &req, s.validate); err != nil {
		return
	}
	addr, err := s.accounts.AddAddress(userID(c), req)
	if err != nil {
		fail(c, http.StatusNotFound, "not_found", "User not found")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"address": addr})
}
