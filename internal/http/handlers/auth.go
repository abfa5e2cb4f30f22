package handlers

import (
	"net/http"

	"staybackend/internal/services"

	"github.com/gin-gonic/gin"
)

// POST /api/auth/login
func (a *API) Login(c *gin.Context) {
	var in services.LoginInput
	if !BindJSONOrError(c, &in) {
		return
	}
	res, err := a.Auth.Login(c.Request.Context(), in)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/auth/register
func (a *API) Register(c *gin.Context) {
	var in services.RegisterInput
	if !BindJSONOrError(c, &in) {
		return
	}
	res, err := a.Auth.Register(c.Request.Context(), in)
	if err != nil {
		a.RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
