package functions

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/etnz/immotax"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userKey = "immotax.user"

// NewToken returns a new random API token and the hash stored on the user.
func NewToken() (token, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("cannot generate token: %w", err)
	}
	token = "itx_" + hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken returns the hash of an API token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// authenticate resolves the user of the bearer token of the request.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			respondError(c, fmt.Errorf("%w: missing bearer token", ErrUnauthenticated))
			return
		}
		users, err := s.ents.Users.Where(c.Request.Context(), "", "tokenHash", HashToken(token))
		if err != nil {
			respondError(c, err)
			return
		}
		if len(users) != 1 {
			respondError(c, fmt.Errorf("%w: invalid token", ErrUnauthenticated))
			return
		}
		u := users[0]
		c.Set(userKey, u)
		c.Set(loggerKey, logger(c).With(zap.String("user", u.ID)))
		c.Next()
	}
}

// currentUser returns the authenticated user of the request.
func currentUser(c *gin.Context) *immotax.User {
	return c.MustGet(userKey).(*immotax.User)
}

// owner returns the id of the authenticated user, the owner of every entity
// the request reads or writes.
func owner(c *gin.Context) string { return currentUser(c).ID }
