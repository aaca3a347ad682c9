// Package idgen generates interrupt content ids. The strategy is chosen by
// configuration.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nrednav/cuid2"
	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

// Strategy names accepted by New.
const (
	StrategyUUID   = "uuid"
	StrategyULID   = "ulid"
	StrategyKSUID  = "ksuid"
	StrategyNanoID = "nanoid"
	StrategyCUID2  = "cuid2"
)

const (
	DefaultNanoIDSize     = 21
	DefaultNanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultCUID2Length    = 24
)

// Generator produces ids.
type Generator interface {
	Generate() (string, error)
}

type strategy struct {
	name     string
	generate func() (string, error)
}

func (s strategy) Generate() (string, error) {
	id, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", s.name, err)
	}
	return id, nil
}

// New returns the generator for name. An empty name selects UUID.
func New(name string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyUUID:
		return UUID(), nil
	case StrategyULID:
		return ULID(), nil
	case StrategyKSUID:
		return KSUID(), nil
	case StrategyNanoID:
		return NanoID(DefaultNanoIDSize, DefaultNanoIDAlphabet)
	case StrategyCUID2:
		return CUID2(DefaultCUID2Length)
	default:
		return nil, fmt.Errorf("unsupported id strategy: %s", name)
	}
}

// UUID generates random (v4) UUIDs.
func UUID() Generator {
	return strategy{
		name: StrategyUUID,
		generate: func() (string, error) {
			id, err := uuid.NewRandom()
			return id.String(), err
		},
	}
}

// ULID generates time-ordered ULIDs.
func ULID() Generator {
	return strategy{
		name: StrategyULID,
		generate: func() (string, error) {
			id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
			return id.String(), err
		},
	}
}

// KSUID generates K-sortable ids.
func KSUID() Generator {
	return strategy{
		name: StrategyKSUID,
		generate: func() (string, error) {
			id, err := ksuid.NewRandom()
			return id.String(), err
		},
	}
}

// NanoID generates ids of size characters drawn from alphabet.
// size must be between 1 and 256 and alphabet at least 2 characters long.
func NanoID(size int, alphabet string) (Generator, error) {
	if size < 1 || size > 256 {
		return nil, fmt.Errorf("nanoid size must be between 1 and 256, got %d", size)
	}
	if len(alphabet) < 2 {
		return nil, fmt.Errorf("nanoid alphabet must have at least 2 characters, got %d", len(alphabet))
	}
	return strategy{
		name: StrategyNanoID,
		generate: func() (string, error) {
			return gonanoid.Generate(alphabet, size)
		},
	}, nil
}

// CUID2 generates collision-resistant ids of the given length (2 to 32).
func CUID2(length int) (Generator, error) {
	if length < 2 || length > 32 {
		return nil, fmt.Errorf("cuid2 length must be between 2 and 32, got %d", length)
	}
	next, err := cuid2.Init(cuid2.WithLength(length))
	if err != nil {
		return nil, fmt.Errorf("failed to init cuid2: %w", err)
	}
	return strategy{
		name:     StrategyCUID2,
		generate: func() (string, error) { return next(), nil },
	}, nil
}
