package session

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"playbox/internal/core"
)

// Operator is a configured account allowed to log in.
type Operator struct {
	Username     string
	Role         core.Role
	PasswordHash []byte
}

// ParseOperators reads "username:role:bcrypt-hash" entries separated by commas.
func ParseOperators(list string) (map[string]Operator, error) {
	ops := make(map[string]Operator)
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("operator entry %q: want username:role:hash", raw)
		}
		op := Operator{
			Username:     strings.TrimSpace(parts[0]),
			Role:         core.Role(strings.ToLower(strings.TrimSpace(parts[1]))),
			PasswordHash: []byte(strings.TrimSpace(parts[2])),
		}
		if err := (core.Admin{Username: op.Username, Role: op.Role}).Validate(); err != nil {
			return nil, fmt.Errorf("operator %q: %w", op.Username, err)
		}
		if _, err := bcrypt.Cost(op.PasswordHash); err != nil {
			return nil, fmt.Errorf("operator %q: invalid bcrypt hash: %w", op.Username, err)
		}
		if _, dup := ops[op.Username]; dup {
			return nil, fmt.Errorf("operator %q listed twice", op.Username)
		}
		ops[op.Username] = op
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("no operators configured")
	}
	return ops, nil
}

// HashPassword is used by the CLI to produce OPERATORS entries.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}
