package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const jwtUsage = "-sub <address> [-secret-env VAR] [-iss issuer] [-aud audience] [-ttl 1h]"

// runJWT prints an HS256 bearer token accepted by a node with auth enabled.
func runJWT(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("jwt", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	secretEnv := fs.String("secret-env", "FARMD_JWT_SECRET", "Environment variable holding the node HMAC secret")
	subject := fs.String("sub", "", "Address the token authenticates")
	issuer := fs.String("iss", "", "Issuer claim")
	audience := fs.String("aud", "", "Audience claim")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}
	sub, err := parseAddress(*subject)
	if err != nil {
		return fmt.Errorf("jwt: -sub: %w", err)
	}
	secret := strings.TrimSpace(os.Getenv(*secretEnv))
	if secret == "" {
		return fmt.Errorf("jwt: environment variable %s is empty", *secretEnv)
	}
	token, err := signToken([]byte(secret), sub.Hex(), *issuer, *audience, time.Now(), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}

func signToken(secret []byte, subject, issuer, audience string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if audience != "" {
		claims["aud"] = audience
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}
