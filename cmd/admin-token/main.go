// Command admin-token mints an admin bearer token for one terminal, signed
// with the key the terminal reads from its environment.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	jwttoken "checkin/internal/jwt_token"
	"checkin/internal/platform/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	adminID := flag.String("admin", "", "admin identifier recorded on overrides and corrections")
	terminalID := flag.String("terminal", cfg.Terminal.ID, "terminal the token is valid for")
	ttl := flag.Duration("ttl", cfg.Auth.AdminTokenTTL, "token lifetime")
	flag.Parse()

	svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer, *terminalID)
	token, err := svc.GenerateAdminToken(*adminID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
