package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// ActorClaims is the token shape the gateway mints. Kind and UserID mirror
// the X-Actor-Kind / X-User-ID headers used on the internal network.
type ActorClaims struct {
	jwt.RegisteredClaims
	Kind   string `json:"kind"`
	UserID string `json:"userId"`
}
