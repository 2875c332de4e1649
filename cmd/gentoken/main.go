// Package main provides a tool that mints admin tokens for the log endpoints.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/buildswift/orchestrator/internal/auth"
	"github.com/buildswift/orchestrator/pkg/logger"
)

func main() {
	subject := flag.String("subject", "admin", "Subject for the token")
	email := flag.String("email", "admin@localhost", "Email for the token")
	secret := flag.String("secret", "", "JWT secret (or set ADMIN_JWT_SECRET env var)")
	expiry := flag.Duration("expiry", 24*time.Hour, "Token expiry duration")
	flag.Parse()

	jwtSecret := *secret
	if jwtSecret == "" {
		jwtSecret = os.Getenv("ADMIN_JWT_SECRET")
	}
	if jwtSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: JWT secret required. Use -secret flag or set ADMIN_JWT_SECRET env var")
		fmt.Fprintln(os.Stderr, "Example: go run ./cmd/gentoken -secret 'your-secret-at-least-32-chars-long'")
		os.Exit(1)
	}
	if len(jwtSecret) < 32 {
		fmt.Fprintln(os.Stderr, "Error: JWT secret must be at least 32 characters")
		os.Exit(1)
	}

	svc := auth.NewService(&auth.Config{
		JWTSecret:   []byte(jwtSecret),
		TokenExpiry: *expiry,
	}, logger.Discard())
	token, err := svc.GenerateToken(*subject, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
