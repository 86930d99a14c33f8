// Command devtoken prints a signed access token for local testing against the API.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/essay-review-api/internal/models"
	"github.com/noah-isme/essay-review-api/internal/service"
	"github.com/noah-isme/essay-review-api/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := run(os.Args[1:], cfg.JWT, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, jwtCfg config.JWTConfig, out io.Writer) error {
	fs := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	fs.SetOutput(out)
	var (
		userID string
		role   string
		email  string
		ttl    time.Duration
	)
	fs.StringVar(&userID, "user", "", "User ID carried in the token")
	fs.StringVar(&role, "role", string(models.RoleStudent), "ADMIN, STUDENT or TEACHER")
	fs.StringVar(&email, "email", "", "Optional email claim")
	fs.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if userID == "" {
		return errors.New("-user is required")
	}
	userRole := models.UserRole(strings.ToUpper(role))
	switch userRole {
	case models.RoleAdmin, models.RoleStudent, models.RoleTeacher:
	default:
		return fmt.Errorf("unknown role %q", role)
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret:   jwtCfg.Secret,
		Issuer:   jwtCfg.Issuer,
		Audience: jwtCfg.Audience,
		Expiry:   ttl,
	})
	token, expiresAt, err := tokens.IssueToken(userID, userRole, email)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintf(out, "%s\n# expires %s\n", token, expiresAt.Format(time.RFC3339))
	return nil
}
