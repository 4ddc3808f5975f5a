package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"brain-core/internal/apperr"
	"brain-core/internal/db"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const userContextKey = "UserID"

// UserClaims represents JWT claims for authenticated users.
type UserClaims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func checkPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func generateToken(userID, secret string, expiresAt time.Time) (string, error) {
	claims := UserClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(tokenStr, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims.UserID, nil
	}
	return "", errors.New("invalid token claims")
}

// AuthMiddleware enforces JWT auth for protected routes.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			writeErr(c, apperr.New(apperr.AuthN, "missing Authorization header"))
			c.Abort()
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeErr(c, apperr.New(apperr.AuthN, "invalid Authorization header"))
			c.Abort()
			return
		}

		userID, err := parseToken(parts[1], secret)
		if err != nil {
			writeErr(c, apperr.New(apperr.AuthN, "invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(userContextKey, userID)
		c.Next()
	}
}

// RequireAdmin enforces role=admin or a configured admin email on top
// of AuthMiddleware, per §6's "admin endpoints additionally require
// role=admin or a configured admin email".
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.App.DB.GetUserByID(c.Request.Context(), CurrentUserID(c))
		if err != nil {
			writeErr(c, apperr.New(apperr.AuthZ, "not authorized"))
			c.Abort()
			return
		}
		if user.Role == "admin" || isAdminEmail(s.App.Config.AdminEmails, user.Email) {
			c.Next()
			return
		}
		writeErr(c, apperr.New(apperr.AuthZ, "admin role required"))
		c.Abort()
	}
}

func isAdminEmail(admins []string, email string) bool {
	for _, a := range admins {
		if strings.EqualFold(a, email) {
			return true
		}
	}
	return false
}

// CurrentUserID returns the authenticated user ID from context.
func CurrentUserID(c *gin.Context) string {
	if v, ok := c.Get(userContextKey); ok {
		if id, okCast := v.(string); okCast {
			return id
		}
	}
	return ""
}

// registerUser handles user registration. Password minimum length is
// 8 per §6.
func (s *Server) registerUser(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Validation, "invalid request payload"))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || len(req.Password) < 8 {
		writeErr(c, apperr.New(apperr.Validation, "email and an 8+ character password are required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeErr(c, apperr.New(apperr.Validation, "invalid email format"))
		return
	}

	ctx := c.Request.Context()
	if _, err := s.App.DB.GetUserByEmail(ctx, req.Email); err == nil {
		writeErr(c, apperr.New(apperr.Validation, "email already registered"))
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		writeErr(c, apperr.Wrap(apperr.Internal, "lookup user", err))
		return
	}

	pwHash, err := hashPassword(req.Password)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "hash password", err))
		return
	}

	user := &db.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: pwHash,
		AuthProvider: "password",
		Role:         "user",
		ReferralCode: uuid.NewString()[:8],
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.App.DB.InsertUser(ctx, user); err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "create user", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID, "email": user.Email})
}

// loginUser handles user login.
func (s *Server) loginUser(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Validation, "invalid request payload"))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeErr(c, apperr.New(apperr.Validation, "email and password are required"))
		return
	}

	ctx := c.Request.Context()
	user, err := s.App.DB.GetUserByEmail(ctx, req.Email)
	if err != nil {
		writeErr(c, apperr.New(apperr.AuthN, "invalid credentials"))
		return
	}

	if err := checkPassword(user.PasswordHash, req.Password); err != nil {
		writeErr(c, apperr.New(apperr.AuthN, "invalid credentials"))
		return
	}

	expiresAt := time.Now().Add(s.App.Config.TokenTTL)
	token, err := generateToken(user.ID, s.JWTSecret, expiresAt)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "generate token", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"user_id":    user.ID,
		"user_email": user.Email,
	})
}

// sendOTP issues a TOTP code for the authenticated flow's second
// factor (registration confirmation, password reset). The code is
// returned in-process per SPEC_FULL §6's "no email delivery in this
// repository" framing rather than dispatched anywhere.
func (s *Server) sendOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeErr(c, apperr.New(apperr.Validation, "email is required"))
		return
	}
	code, err := s.App.OTP.SendCode(req.Email, req.Email)
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.Internal, "issue otp", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true, "code": code})
}

// verifyOTP validates a 6-digit, single-use code issued by sendOTP.
// Codes follow 30-second TOTP steps and are accepted one step either
// side of the current one; there is no 10-minute validity window.
func (s *Server) verifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.BindJSON(&req); err != nil {
		writeErr(c, apperr.New(apperr.Validation, "invalid request payload"))
		return
	}
	if err := s.App.OTP.Verify(req.Email, req.Code); err != nil {
		writeErr(c, apperr.New(apperr.AuthN, "invalid or expired code"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// getMe returns the authenticated user's profile.
func (s *Server) getMe(c *gin.Context) {
	user, err := s.App.DB.GetUserByID(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		writeErr(c, apperr.Wrap(apperr.NotFound, "user not found", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":          user.ID,
		"email":            user.Email,
		"role":             user.Role,
		"current_plan_id":  user.CurrentPlanID,
		"broker_connected": user.BrokerConnected,
		"referral_code":    user.ReferralCode,
	})
}
