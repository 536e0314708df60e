package identity

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultWorkFactor is the bcrypt cost used when none is configured
const DefaultWorkFactor = 12

// Hasher is a one-way password hash
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// MaxPasswordLength is the longest password bcrypt accepts, in bytes
const MaxPasswordLength = 72

// BcryptHasher hashes passwords with bcrypt at a fixed cost
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a BcryptHasher, cost must be within bcrypt.MinCost and bcrypt.MaxCost
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt work factor %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (h *BcryptHasher) Compare(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
