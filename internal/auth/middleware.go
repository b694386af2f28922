package auth

import (
	"net/http"
	"strconv"

	"ticket_waitroom/internal/response"

	"github.com/gin-gonic/gin"
)

// IdentityMiddleware извлекает идентификатор пользователя из заголовка
// X-User-ID. Аутентификацию выполняет вышестоящий шлюз, сервис очереди
// доверяет уже проверенному заголовку.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDStr := c.GetHeader("X-User-ID")
		if userIDStr == "" {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    "NO_USER_ID",
				Message: "Не указан идентификатор пользователя",
			})
			c.Abort()
			return
		}

		userID, err := strconv.ParseUint(userIDStr, 10, 64)
		if err != nil || userID == 0 {
			c.JSON(http.StatusUnauthorized, response.ErrorResponse{
				Code:    "INVALID_USER_ID",
				Message: "Невозможно извлечь user_id",
			})
			c.Abort()
			return
		}

		c.Set("userID", uint(userID))
		c.Next()
	}
}
