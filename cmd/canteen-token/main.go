// Command canteen-token mints identity tokens for local development.
//
//	canteen-token -sub s-1042 -name "Asha" -role student -ttl 12h
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"canteen-orders-api/config"
	"canteen-orders-api/middleware"
	"canteen-orders-api/models"
)

type options struct {
	Subject string
	Name    string
	Role    string
	TTL     time.Duration
	Secret  string
}

func parseFlags(fs *flag.FlagSet, args []string, defaultSecret string) (options, error) {
	var o options
	fs.StringVar(&o.Subject, "sub", "", "student or staff id (required)")
	fs.StringVar(&o.Name, "name", "", "display name")
	fs.StringVar(&o.Role, "role", string(models.RoleStudent), "student or staff")
	fs.DurationVar(&o.TTL, "ttl", 24*time.Hour, "token lifetime")
	fs.StringVar(&o.Secret, "secret", defaultSecret, "HS256 signing secret (defaults to JWT_SECRET)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if o.Subject == "" {
		return options{}, fmt.Errorf("-sub is required")
	}
	if o.TTL <= 0 {
		return options{}, fmt.Errorf("-ttl must be positive")
	}
	return o, nil
}

func run(o options, out io.Writer) error {
	token, err := middleware.NewAuth(o.Secret).GenerateToken(models.Student{
		ID:   o.Subject,
		Name: o.Name,
		Role: models.UserRole(o.Role),
	}, o.TTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	o, err := parseFlags(flag.CommandLine, os.Args[1:], cfg.JWTSecret)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(o, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "mint token:", err)
		os.Exit(1)
	}
}
