package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"restricted-backend/internal/engine"
	"restricted-backend/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     *store.Store
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(s *store.Store, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: s, jwtSecret: jwtSecret}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return engine.UnauthorizedError("Email and password are required")
	}

	ctx := c.Context()

	user, err := store.FindUserByEmail(ctx, h.store.Pool, body.Email)
	if err != nil {
		return engine.UnauthorizedError("Invalid email or password")
	}

	active, _ := user["active"].(bool)
	if !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	passwordHash, _ := user["password_hash"].(string)
	if !CheckPassword(body.Password, passwordHash) {
		return engine.UnauthorizedError("Invalid email or password")
	}

	username, _ := user["name"].(string)
	sysadmin, _ := user["sysadmin"].(bool)
	userID, _ := user["id"].(string)

	pair, err := h.generateTokenPair(ctx, userID, username, sysadmin)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": pair})
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var body struct {
		Name     string `json:"name"`
		Fullname string `json:"fullname"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || body.Email == "" {
		return engine.ValidationError("Name and email are required")
	}
	if len(body.Password) < 8 {
		return engine.ValidationError("Password must be at least 8 characters")
	}

	hash, err := HashPassword(body.Password)
	if err != nil {
		return err
	}

	ctx := c.Context()
	row, err := store.QueryRow(ctx, h.store.Pool,
		`INSERT INTO _users (name, fullname, email, password_hash)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING
		 RETURNING id, name`, body.Name, body.Fullname, body.Email, hash)
	if err != nil {
		return engine.NewAppError("CONFLICT", 409, "Username or email already taken")
	}

	userID, _ := row["id"].(string)
	pair, err := h.generateTokenPair(ctx, userID, body.Name, false)
	if err != nil {
		return err
	}

	return c.Status(201).JSON(fiber.Map{"data": pair})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil {
		return engine.NewAppError("INVALID_PAYLOAD", 400, "Invalid request body")
	}
	if body.RefreshToken == "" {
		return engine.UnauthorizedError("Refresh token is required")
	}

	ctx := c.Context()

	row, err := store.QueryRow(ctx, h.store.Pool,
		`SELECT rt.id, rt.user_id, rt.expires_at, u.name, u.sysadmin, u.active
		 FROM _refresh_tokens rt
		 JOIN _users u ON u.id = rt.user_id
		 WHERE rt.token = $1`, body.RefreshToken)
	if err != nil {
		return engine.UnauthorizedError("Invalid refresh token")
	}

	expiresAt, _ := row["expires_at"].(time.Time)
	if time.Now().After(expiresAt) {
		_, _ = store.Exec(ctx, h.store.Pool,
			"DELETE FROM _refresh_tokens WHERE token = $1", body.RefreshToken)
		return engine.UnauthorizedError("Refresh token expired")
	}

	active, _ := row["active"].(bool)
	if !active {
		return engine.UnauthorizedError("Account is disabled")
	}

	// Rotate: the used refresh token is spent.
	tokenID, _ := row["id"].(string)
	_, _ = store.Exec(ctx, h.store.Pool,
		"DELETE FROM _refresh_tokens WHERE id = $1", tokenID)

	userID, _ := row["user_id"].(string)
	username, _ := row["name"].(string)
	sysadmin, _ := row["sysadmin"].(bool)

	pair, err := h.generateTokenPair(ctx, userID, username, sysadmin)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": pair})
}

// ListUsers handles GET /api/admin/users, the sysadmin view of the user
// directory used when filling allowed_users lists.
func (h *AuthHandler) ListUsers(c *fiber.Ctx) error {
	users, err := store.ListUsers(c.Context(), h.store.Pool)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": users})
}

func (h *AuthHandler) generateTokenPair(ctx context.Context, userID, username string, sysadmin bool) (*TokenPair, error) {
	access, err := GenerateAccessToken(username, sysadmin, h.jwtSecret)
	if err != nil {
		return nil, err
	}

	refresh := GenerateRefreshToken()
	_, err = store.Exec(ctx, h.store.Pool,
		`INSERT INTO _refresh_tokens (user_id, token, expires_at) VALUES ($1, $2, $3)`,
		userID, refresh, time.Now().Add(RefreshTokenTTL))
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
