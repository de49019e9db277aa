// admintoken выпускает JWT с ролью admin для изменяющих эндпоинтов API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"arcfolio/internal/config"
	jwtlib "arcfolio/internal/lib/jwt"
)

func main() {
	var (
		configPath string
		subject    string
		ttl        time.Duration
	)

	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to config file")
	flag.StringVar(&subject, "sub", "admin", "token subject")
	flag.DurationVar(&ttl, "ttl", 0, "token lifetime, defaults to auth.token_ttl")
	flag.Parse()

	if configPath == "" {
		fmt.Fprintln(os.Stderr, "config path is empty")
		os.Exit(2)
	}

	cfg, err := config.LoadPath(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if ttl == 0 {
		ttl = cfg.Auth.TokenTTL
	}

	token, err := jwtlib.NewToken(subject, jwtlib.RoleAdmin, cfg.Auth.JWTSecret, ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(token)
}
