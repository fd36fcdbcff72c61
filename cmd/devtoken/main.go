// cmd/devtoken/main.go prints a signed access token for local testing.
// Usage: JWT_SECRET=... go run ./cmd/devtoken [user-uuid]
package main

import (
	"fmt"
	"os"
	"time"

	"possync/internal/config"
	"possync/internal/middleware"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	userID := uuid.NewString()
	if len(os.Args) > 1 {
		id, err := uuid.Parse(os.Args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("user id must be a UUID")
		}
		userID = id.String()
	}

	ttl := time.Duration(cfg.JWTExpirationHours) * time.Hour
	token, err := middleware.IssueToken(cfg.JWTSecret, userID, "dev", ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	log.Info().Str("user_id", userID).Dur("ttl", ttl).Msg("token issued")
	fmt.Println(token)
}
