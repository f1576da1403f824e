package handlers

import (
	"fmt"
	"strings"

	"document-access-service/internal/config"
	"document-access-service/internal/models"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ActorFromRequest reads the request identity. The gateway forwards
// X-User-ID and X-Actor-Kind on the internal network; a bearer token signed
// with the shared secret is accepted as a fallback for direct callers.
func ActorFromRequest(c fiber.Ctx) (models.Actor, error) {
	kind := c.Get("X-Actor-Kind")
	id := c.Get("X-User-ID")

	if id == "" {
		var err error
		kind, id, err = actorFromBearer(c)
		if err != nil {
			return models.Actor{}, err
		}
	}

	actorKind := models.ActorKind(kind)
	if !actorKind.Valid() {
		return models.Actor{}, fmt.Errorf("unknown actor kind %q", kind)
	}

	actorID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid actor ID format")
	}

	return models.Actor{Kind: actorKind, ID: actorID}, nil
}

func actorFromBearer(c fiber.Ctx) (string, string, error) {
	authHeader := c.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "", fmt.Errorf("missing actor identity")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")

	claims := &models.ActorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.ServiceConfig.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", "", fmt.Errorf("invalid token")
	}

	return claims.Kind, claims.UserID, nil
}
