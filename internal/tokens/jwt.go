package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// DefaultDeviceTokenTTL keeps devices signed in across typical push-token
// rotation intervals.
const DefaultDeviceTokenTTL = 90 * 24 * time.Hour

// Claims identify one registered device on the gateway.
type Claims struct {
	DeviceID string `json:"device_id"`
	Platform string `json:"platform,omitempty"`
	jwt.RegisteredClaims
}

type Manager struct {
	signingKey []byte
}

func NewManager(signingKey string) *Manager {
	return &Manager{signingKey: []byte(signingKey)}
}

// GenerateDeviceToken issues a device JWT for the alert feed and protected
// routes.
func (m *Manager) GenerateDeviceToken(deviceID, platform string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultDeviceTokenTTL
	}
	now := time.Now().UTC()
	claims := Claims{
		DeviceID: deviceID,
		Platform: platform,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(), // jti
			Subject:   deviceID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	// Kid for future key rotation, single key today.
	token.Header["kid"] = "v1"

	return token.SignedString(m.signingKey)
}

func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// ValidateDevice satisfies the alert hub's TokenValidator.
func (m *Manager) ValidateDevice(tokenString string) (string, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	if claims.DeviceID == "" {
		return "", ErrInvalidToken
	}
	return claims.DeviceID, nil
}
