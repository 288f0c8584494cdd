package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/auth"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
)

// createtoken mints a development bearer token signed with the configured secret.
func main() {
	var (
		configPath = flag.String("config", "", "path to config.json")
		userID     = flag.String("user", "dev-user", "user id claim")
		email      = flag.String("email", "", "email claim used for report delivery")
		ttl        = flag.Duration("ttl", auth.AccessTokenTTL, "token lifetime")
	)
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	token, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer).GenerateAccessToken(*userID, *email, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to sign token:", err)
		os.Exit(1)
	}

	fmt.Printf("Access token for %s (expires %s):\n", *userID, time.Now().Add(*ttl).Format(time.RFC3339))
	fmt.Println(token)
}
