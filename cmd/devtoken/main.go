// Command devtoken mints a JWT for local development and manual testing.
//
//	devtoken -user <uuid> -org <uuid> [-ttl 24h]
//
// The secret comes from JWT_SECRET (or the env file), the same as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/brokerchat/internal/auth"
	"github.com/lalith-99/brokerchat/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	userFlag := fs.String("user", "", "user id (random when empty)")
	orgFlag := fs.String("org", "", "organization id (random when empty)")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userID, err := idOrNew(*userFlag)
	if err != nil {
		return fmt.Errorf("-user: %w", err)
	}
	orgID, err := idOrNew(*orgFlag)
	if err != nil {
		return fmt.Errorf("-org: %w", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	token, err := auth.GenerateToken(userID, orgID, cfg.JWTSecret, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "user_id=%s organization_id=%s expires_in=%s\n", userID, orgID, *ttl)
	fmt.Println(token)
	return nil
}

func idOrNew(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(raw)
}
