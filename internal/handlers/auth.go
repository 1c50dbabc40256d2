package handlers

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"minimarket/internal/auth"
	"minimarket/internal/logging"
	"minimarket/internal/models"
	"minimarket/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mr-tron/base58"
)

var log = logging.New("http")

// LoginMessage prefixes the text a wallet signs to log in. The signed text
// is LoginMessage, a newline and "Timestamp: <unix seconds>".
const LoginMessage = "Sign this message to authenticate with minimarket"

const timestampLine = "\nTimestamp: "

// loginWindow bounds the clock difference between signer and server
const loginWindow = 5 * time.Minute

var now = time.Now

// LoginMessageAt returns the login text for a signature made at t
func LoginMessageAt(t time.Time) string {
	return LoginMessage + timestampLine + strconv.FormatInt(t.Unix(), 10)
}

// parseLoginMessage returns the signing time embedded in a login message
func parseLoginMessage(msg string) (time.Time, error) {
	rest, ok := strings.CutPrefix(msg, LoginMessage+timestampLine)
	if !ok {
		return time.Time{}, errors.New("unexpected login message")
	}
	secs, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid login timestamp: %w", err)
	}
	return time.Unix(secs, 0), nil
}

var walletFromContext = auth.GetWalletAddress

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// WalletLogin authenticates a user by their Solana wallet address and a
// signature of a recent LoginMessageAt text.
// POST /auth/wallet
func (h *AuthHandler) WalletLogin(c *gin.Context) {
	var req models.WalletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pubKey, err := base58.Decode(req.WalletAddress)
	if err != nil || len(pubKey) != ed25519.PublicKeySize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet address"})
		return
	}

	// wallets return base58; hex is accepted as a fallback
	sig, err := base58.Decode(req.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		sig, err = hex.DecodeString(req.Signature)
		if err != nil || len(sig) != ed25519.SignatureSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature format"})
			return
		}
	}

	signedAt, err := parseLoginMessage(req.Message)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if skew := now().Sub(signedAt); skew > loginWindow || skew < -loginWindow {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "login message expired"})
		return
	}

	if !ed25519.Verify(pubKey, []byte(req.Message), sig) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	user, err := h.authService.ProcessWalletLogin(c.Request.Context(), req.WalletAddress, signedAt)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.WalletAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{Token: token, User: user})
}

// GetMe returns the currently authenticated user's profile
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}
