package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/term"
)

const secretEnv = "SILOD_HMAC_SECRET"

// readSecret resolves the silod signing secret from the environment or an
// interactive prompt.
var readSecret = func(stderr io.Writer) (string, error) {
	if value, ok := os.LookupEnv(secretEnv); ok {
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("%s is set but empty", secretEnv)
		}
		return value, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("signing secret required; set %s or run interactively", secretEnv)
	}
	fmt.Fprint(stderr, "Enter silod HMAC secret: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	secret := string(raw)
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("signing secret cannot be empty")
	}
	return secret, nil
}

// runToken mints a bearer token for the silod API.
func runToken(_ string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token", stderr)
	subject := fs.String("subject", "", "token subject")
	scope := fs.String("scope", "silo:admin", "space separated scopes")
	issuer := fs.String("issuer", "", "issuer claim")
	audience := fs.String("audience", "", "audience claim")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*subject) == "" {
		return fail(stderr, errors.New("--subject is required"))
	}
	if *ttl <= 0 {
		return fail(stderr, errors.New("--ttl must be positive"))
	}
	secret, err := readSecret(stderr)
	if err != nil {
		return fail(stderr, err)
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   *subject,
		"scope": *scope,
		"iat":   now.Unix(),
		"exp":   now.Add(*ttl).Unix(),
	}
	if *issuer != "" {
		claims["iss"] = *issuer
	}
	if *audience != "" {
		claims["aud"] = *audience
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return fail(stderr, err)
	}
	fmt.Fprintln(stdout, signed)
	return 0
}
