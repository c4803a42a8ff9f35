// Package naming decides where an asset lives in the content store.
//
// Random strategies make a silent overwrite of an unrelated asset vanishingly unlikely
// without any existence probe. Deterministic strategies map the same input to the same
// name and are meant to be paired with a revision-token probe before writing.
package naming

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
	"golang.org/x/crypto/blake2b"
)

const (
	StrategyTimestamp = "timestamp"
	StrategyUUID      = "uuid"
	StrategyDigits    = "digits"
	StrategyXID       = "xid"
	StrategyDigest    = "digest"
	StrategyKeyed     = "keyed"

	maxKeyLength = 128
)

// Input is what a strategy may draw on when naming an asset.
type Input struct {
	OriginalName string
	Key          string
	Content      []byte
}

// Generator produces the base name (without extension) of a stored asset.
type Generator interface {
	Name(in Input) (string, error)
	Deterministic() bool
}

// Strategies lists the names accepted by New.
func Strategies() []string {
	return []string{StrategyTimestamp, StrategyUUID, StrategyDigits, StrategyXID, StrategyDigest, StrategyKeyed}
}

// New returns the generator registered under strategy.
func New(strategy string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyTimestamp, "":
		return Timestamp{}, nil
	case StrategyUUID:
		return UUID{}, nil
	case StrategyDigits:
		return Digits{}, nil
	case StrategyXID:
		return XID{}, nil
	case StrategyDigest:
		return Digest{}, nil
	case StrategyKeyed:
		return Keyed{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

// Timestamp names assets "<unix-millis>-<random below 1e9>".
type Timestamp struct {
	Now func() time.Time
}

func (g Timestamp) Name(Input) (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	n, err := randomBelow(1_000_000_000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%d", now().UnixMilli(), n), nil
}

func (Timestamp) Deterministic() bool { return false }

// UUID names assets with a random version 4 UUID.
type UUID struct{}

func (UUID) Name(Input) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}

func (UUID) Deterministic() bool { return false }

// Digits names assets with a random 10-digit number.
type Digits struct{}

func (Digits) Name(Input) (string, error) {
	n, err := randomBelow(9_000_000_000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", 1_000_000_000+n), nil
}

func (Digits) Deterministic() bool { return false }

// XID names assets with a sortable globally unique id.
type XID struct{}

func (XID) Name(Input) (string, error) {
	return xid.New().String(), nil
}

func (XID) Deterministic() bool { return false }

// Digest names assets by the blake2b-256 of their stored bytes, so identical content
// always lands on the same path.
type Digest struct{}

func (Digest) Name(in Input) (string, error) {
	if len(in.Content) == 0 {
		return "", ErrEmptyContent
	}
	sum := blake2b.Sum256(in.Content)
	return hex.EncodeToString(sum[:16]), nil
}

func (Digest) Deterministic() bool { return true }

// Keyed names assets after a caller-supplied key.
type Keyed struct{}

func (Keyed) Name(in Input) (string, error) {
	return Sanitize(in.Key)
}

func (Keyed) Deterministic() bool { return true }

// Sanitize turns a caller key into a single safe path segment.
func Sanitize(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), ".-")
	if out == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if len(out) > maxKeyLength {
		out = out[:maxKeyLength]
	}
	return out, nil
}

// Join builds the repository path for name under prefix. ext may be empty.
func Join(prefix, name, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name + ext
	}
	return path.Join(prefix, name+ext)
}

func randomBelow(limit int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(limit))
	if err != nil {
		return 0, fmt.Errorf("draw random number: %w", err)
	}
	return n.Int64(), nil
}

var (
	// ErrUnknownStrategy is returned by New for unrecognized strategy names.
	ErrUnknownStrategy = errors.New("unknown naming strategy")
	// ErrInvalidKey signals a caller key that cannot become a path segment.
	ErrInvalidKey = errors.New("invalid asset key")
	// ErrEmptyContent signals a content-addressed name requested for no bytes.
	ErrEmptyContent = errors.New("content is empty")
)
