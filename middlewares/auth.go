package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yassineAchour0609/MediLink-sub000/services"
	"github.com/yassineAchour0609/MediLink-sub000/utils"
)

// CtxUserID is the gin context key carrying the authenticated user id.
const CtxUserID = "userID"

// TokenAuth resolves the Authorization bearer token to a user id and puts it
// on the context. The messaging core trusts this resolved identity.
func TokenAuth(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.RespondError(c, http.StatusUnauthorized, "missing bearer token")
			c.Abort()
			return
		}
		userID, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			utils.RespondError(c, http.StatusUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(CtxUserID, userID)
		c.Next()
	}
}

// CurrentUserID reads the identity TokenAuth stored on the context.
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
