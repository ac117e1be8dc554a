// controllers/auth.go
package controllers

import (
	"net/http"
	"time"

	"appointment-notifier/utils"

	"github.com/gin-gonic/gin"
)

// adminSubject is the token subject issued to the single admin account.
const adminSubject = "admin"

type LoginInput struct {
	Password string `json:"password" binding:"required"`
}

// AuthController issues admin API tokens.
type AuthController struct {
	PasswordHash string
	JWTSecret    string
	TokenTTL     time.Duration
}

func (ac *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if ac.PasswordHash == "" || !utils.CheckPasswordHash(input.Password, ac.PasswordHash) {
		utils.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateToken(adminSubject, ac.JWTSecret, ac.TokenTTL)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresIn": int(ac.TokenTTL.Seconds()),
	})
}

func (ac *AuthController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": c.GetString("userId")})
}

func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
