package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/siberialabel/telegram-support-bot/pkg/util"
)

const principalKey = "auth_principal"

// Principal is the authenticated administrator identity.
type Principal struct {
	AdminID string
}

// AdminMiddleware validates bearer tokens for the admin console. The
// administrator is a single deployment-configured identity, so there is no
// subject lookup beyond matching it.
type AdminMiddleware struct {
	tokens  *TokenManager
	adminID string
}

// NewAdminMiddleware constructs middleware.
func NewAdminMiddleware(tokens *TokenManager, adminID string) *AdminMiddleware {
	return &AdminMiddleware{tokens: tokens, adminID: adminID}
}

// Handle enforces authentication for protected routes.
func (m *AdminMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.Subject != SubjectAdmin || claims.SubjectID != m.adminID {
		return apperrors.NewUnauthorized("administrator required")
	}

	c.Locals(principalKey, &Principal{AdminID: claims.SubjectID})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
