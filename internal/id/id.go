package id

import (
	"context"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet excludes characters that are easily confused when read aloud or
// typed from print (0/O, 1/I/l, 9/g and friends).
const Alphabet = "ABCDEFGHJKMNPQRSTWXYZabcdefhijkmnprstwxyz2345678"

// Length tiers.
const (
	ShortLen   = 4
	PrivateLen = 24
	SecretLen  = 24
)

// Generator produces random identifiers and admin secrets.
type Generator struct {
	alphabet string
}

// New returns a Generator drawing from alphabet. If alphabet is empty, Alphabet is used.
func New(alphabet string) *Generator {
	if alphabet == "" {
		alphabet = Alphabet
	}
	return &Generator{alphabet: alphabet}
}

// Generate returns a string of length characters drawn uniformly from the
// generator's alphabet using a cryptographically secure source.
func (g *Generator) Generate(ctx context.Context, length int) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return gonanoid.Generate(g.alphabet, length)
}

// Secret returns a fresh admin secret.
func (g *Generator) Secret(ctx context.Context) (string, error) {
	return g.Generate(ctx, SecretLen)
}
