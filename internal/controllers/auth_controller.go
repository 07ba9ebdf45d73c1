package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"shiptrace/internal/middleware"
)

// AuthController signs in the single admin account configured through the
// environment. PasswordHash (bcrypt) takes precedence over Password.
type AuthController struct {
	Username     string
	Password     string
	PasswordHash string
	Tokens       *middleware.Tokens
}

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the admin credentials and issues a bearer token.
// @Router /api/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var body loginInput
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Username) == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing username or password"})
		return
	}
	if ac.Username == "" || (ac.Password == "" && ac.PasswordHash == "") {
		logrus.Error("Admin login attempted but admin credentials are not configured.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server misconfiguration"})
		return
	}

	username := strings.TrimSpace(body.Username)
	if !ac.checkCredentials(username, body.Password) {
		logrus.WithField("username", username).Warn("Rejected admin login.")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := ac.Tokens.GenerateToken(username, middleware.RoleAdmin)
	if err != nil {
		logrus.WithError(err).Error("Failed to sign admin token.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"token": token,
		"user":  gin.H{"username": username, "role": middleware.RoleAdmin},
	})
}

func (ac *AuthController) checkCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(ac.Username)) == 1
	var passOK bool
	if ac.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(ac.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(ac.Password)) == 1
	}
	return userOK && passOK
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
