// Package main mints operator tokens for the admin API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ukair/ukair/internal/auth"
)

func main() {
	subject := flag.String("subject", "", "operator identity recorded in the token (required)")
	ttl := flag.Duration("ttl", auth.DefaultAccessTokenExpiry, "token lifetime")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	if *subject == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: os.Getenv("JWT_SIGNING_KEY"),
		Issuer:     getEnvOrDefault("JWT_ISSUER", "https://api.ukair.example"),
		Audience:   getEnvOrDefault("JWT_AUDIENCE", "ukair-admin"),
	})

	token, expiresAt, err := jwtService.GenerateAccessToken(*subject, *ttl, auth.ScopeRunsWrite)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mint token")
	}

	log.Info().
		Str("subject", *subject).
		Time("expires_at", expiresAt).
		Msg("operator token issued")
	fmt.Println(token)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
