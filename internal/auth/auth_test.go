package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/case-service/internal/domain"
	"github.com/spec-kit/case-service/internal/repository/memory"
	apperrors "github.com/spec-kit/case-service/pkg/util/errorutil"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken("u1", domain.RoleAnalyst)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, domain.RoleAnalyst, claims.Role)
}

func TestTokenManager_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("other", 5).GenerateToken("u1", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	claims := &Claims{
		UserID: "u1",
		Role:   domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestPassword_HashAndCompare(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "s3cret-pass"))
	assert.Error(t, ComparePassword(hash, "wrong"))
}

func newTestApp(t *testing.T) (*fiber.App, *TokenManager, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	tm := NewTokenManager("secret", 5)
	mw := NewAuthMiddleware(tm, store.Users())

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		user, _ := UserFromContext(c)
		return c.SendString(user.ID)
	})
	app.Get("/admin", mw.Handle, RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app, tm, store
}

func seedUser(t *testing.T, store *memory.Store, email string, role domain.Role, active bool) *domain.User {
	t.Helper()
	user := &domain.User{Name: email, Email: email, Role: role, Active: active}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return user
}

func doRequest(t *testing.T, app *fiber.App, path, authHeader string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAuthMiddleware(t *testing.T) {
	app, tm, store := newTestApp(t)
	analyst := seedUser(t, store, "analyst@example.com", domain.RoleAnalyst, true)
	disabled := seedUser(t, store, "gone@example.com", domain.RoleAdmin, false)

	analystToken, _, err := tm.GenerateToken(analyst.ID, analyst.Role)
	require.NoError(t, err)
	disabledToken, _, err := tm.GenerateToken(disabled.ID, disabled.Role)
	require.NoError(t, err)
	ghostToken, _, err := tm.GenerateToken("missing", domain.RoleAdmin)
	require.NoError(t, err)

	status, body := doRequest(t, app, "/me", "Bearer "+analystToken)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, analyst.ID, body)

	status, body = doRequest(t, app, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauthorized, body)

	status, _ = doRequest(t, app, "/me", "Token "+analystToken)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doRequest(t, app, "/me", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doRequest(t, app, "/me", "Bearer "+ghostToken)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doRequest(t, app, "/me", "Bearer "+disabledToken)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRequireRole(t *testing.T) {
	app, tm, store := newTestApp(t)
	admin := seedUser(t, store, "admin@example.com", domain.RoleAdmin, true)
	requester := seedUser(t, store, "req@example.com", domain.RoleRequester, true)

	adminToken, _, err := tm.GenerateToken(admin.ID, admin.Role)
	require.NoError(t, err)
	// The stored role wins over a forged claim.
	forged, _, err := tm.GenerateToken(requester.ID, domain.RoleAdmin)
	require.NoError(t, err)

	status, _ := doRequest(t, app, "/admin", "Bearer "+adminToken)
	assert.Equal(t, http.StatusNoContent, status)

	status, body := doRequest(t, app, "/admin", "Bearer "+forged)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, apperrors.CodeForbidden, body)
}
