package waitroom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionTokenRoundTrip(t *testing.T) {
	token, err := IssueAdmissionToken(1, 11, time.Now(), 10*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NoError(t, ValidateAdmissionToken(token, 1, 11))
}

func TestAdmissionTokenWrongUser(t *testing.T) {
	token, err := IssueAdmissionToken(1, 11, time.Now(), 10*time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateAdmissionToken(token, 1, 12), ErrInvalidAdmissionState)
	assert.ErrorIs(t, ValidateAdmissionToken(token, 2, 11), ErrInvalidAdmissionState)
}

func TestAdmissionTokenExpired(t *testing.T) {
	// Срок выставлен в прошлое — проверка подписи проходит, срок нет.
	token, err := IssueAdmissionToken(1, 11, time.Now().Add(-time.Hour), 10*time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, ValidateAdmissionToken(token, 1, 11), ErrInvalidAdmissionState)
}

func TestAdmissionTokenReissuedEachPromotion(t *testing.T) {
	first, err := IssueAdmissionToken(1, 11, time.Now(), 10*time.Minute)
	require.NoError(t, err)
	second, err := IssueAdmissionToken(1, 11, time.Now(), 10*time.Minute)
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "Каждый допуск должен получать новый токен")
}

func TestAdmissionTokenGarbage(t *testing.T) {
	assert.ErrorIs(t, ValidateAdmissionToken("не-токен", 1, 11), ErrInvalidAdmissionState)
}
