package waitroom

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	secretOnce      sync.Once
	admissionSecret []byte
)

// Секрет читается при первом обращении, после того как main подгрузит .env.
func tokenSecret() []byte {
	secretOnce.Do(func() {
		admissionSecret = []byte(os.Getenv("ADMISSION_TOKEN_SECRET"))
	})
	return admissionSecret
}

// IssueAdmissionToken выпускает токен допуска. Токен перевыпускается при
// каждом допуске, поэтому повтор старого токена ничего не даёт.
func IssueAdmissionToken(queueID, userID uint, admittedAt time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"queue_id": queueID,
		"user_id":  userID,
		"jti":      uuid.NewString(),
		"iat":      admittedAt.Unix(),
		"exp":      admittedAt.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tokenSecret())
	if err != nil {
		return "", fmt.Errorf("подпись токена допуска: %w", err)
	}
	return signed, nil
}

// ValidateAdmissionToken проверяет подпись и срок действия токена.
// Это дополнительная проверка: решающей остаётся запись в Redis.
func ValidateAdmissionToken(tokenString string, queueID, userID uint) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return tokenSecret(), nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidAdmissionState
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidAdmissionState
	}
	qid, ok := claims["queue_id"].(float64)
	if !ok || uint(qid) != queueID {
		return ErrInvalidAdmissionState
	}
	uid, ok := claims["user_id"].(float64)
	if !ok || uint(uid) != userID {
		return ErrInvalidAdmissionState
	}
	return nil
}
