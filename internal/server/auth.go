package server

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var errInvalidToken = errors.New("invalid token")

// parseToken validates signature, issuer and audience and returns the subject.
func (s *Server) parseToken(tokenString string) (uint, jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return 0, nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, nil, errInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, nil, errInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, nil, errInvalidToken
	}
	return uint(userID), claims, nil
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Split(c.Get(fiber.HeaderAuthorization), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func (s *Server) revoked(ctx context.Context, claims jwt.MapClaims) bool {
	jti, _ := claims["jti"].(string)
	if jti == "" || s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, "blacklist:"+jti).Result()
	return err == nil && n > 0
}

// consumeTicket resolves a single-use websocket ticket.
func (s *Server) consumeTicket(ctx context.Context, ticket string) (uint, bool) {
	if s.redis == nil || ticket == "" {
		return 0, false
	}
	raw, err := s.redis.GetDel(ctx, "ws_ticket:"+ticket).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "ws ticket lookup failed", "error", err.Error())
		}
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func setPrincipal(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
}

// AuthRequired returns the authentication middleware
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws")

		// A websocket ticket is checked before any token.
		if ticket := c.Query("ticket"); ticket != "" && isWSPath {
			userID, ok := s.consumeTicket(c.UserContext(), ticket)
			if !ok {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			if handled, err := s.rejectBanned(c, userID); handled {
				return err
			}
			setPrincipal(c, userID)
			return c.Next()
		}

		tokenString := bearerToken(c)
		// Tokens in URLs leak into logs; websocket clients must use a ticket.
		if tokenString == "" && !isWSPath {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		userID, claims, err := s.parseToken(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}
		if s.revoked(c.UserContext(), claims) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}
		if handled, err := s.rejectBanned(c, userID); handled {
			return err
		}

		c.Locals("claims", claims)
		setPrincipal(c, userID)
		return c.Next()
	}
}

// rejectBanned writes 401 for unknown principals and 403 for banned ones.
// When handled is true the response is already written and err is the write result.
func (s *Server) rejectBanned(c *fiber.Ctx, userID uint) (handled bool, err error) {
	if s.userRepo == nil {
		return false, nil
	}
	user, lookupErr := s.userRepo.GetByID(c.UserContext(), userID)
	switch {
	case lookupErr != nil && models.HTTPStatus(lookupErr) == fiber.StatusNotFound:
		return true, models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("User no longer exists"))
	case lookupErr != nil:
		return true, respondAppError(c, lookupErr)
	case user.IsBanned:
		return true, models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Account is banned"))
	}
	return false, nil
}

// AdminRequired returns middleware that rejects non-admin users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		user, err := s.userRepo.GetByID(c.UserContext(), userID)
		if err != nil {
			return respondAppError(c, err)
		}
		if !user.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// viewer resolves the caller. A request carrying an Authorization header is
// judged by its token alone, so an invalid token is anonymous and userId is
// ignored. Without the header the legacy userId query parameter names the
// viewer, and verified is false.
func (s *Server) viewer(c *fiber.Ctx) (id *uint, verified bool) {
	if c.Get(fiber.HeaderAuthorization) != "" {
		userID, claims, err := s.parseToken(bearerToken(c))
		if err != nil || s.revoked(c.UserContext(), claims) {
			return nil, false
		}
		return &userID, true
	}
	if raw := c.Query("userId"); raw != "" {
		if n, err := strconv.ParseUint(raw, 10, 32); err == nil && n > 0 {
			v := uint(n)
			return &v, false
		}
	}
	return nil, false
}

func (s *Server) optionalUserID(c *fiber.Ctx) *uint {
	id, _ := s.viewer(c)
	return id
}
