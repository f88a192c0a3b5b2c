// Package credentials generates friendly usernames to offer learners who have
// not picked one yet.
package credentials

import (
	"crypto/rand"
	"io"
	"math/big"

	"studytrail/internal/validation"
)

// Word lists for suggested usernames; every adjective-noun pair fits the username length limit
var adjectives = []string{
	"curious", "patient", "careful", "eager", "steady", "bright", "clever", "brave",
	"swift", "tidy", "quiet", "bold", "keen", "nimble", "plucky", "sharp",
	"focused", "lively", "sunny", "gentle", "daring", "jolly", "witty", "humble",
}

var nouns = []string{
	"gopher", "coder", "compiler", "parser", "builder", "debugger", "linter", "tester",
	"scholar", "reader", "thinker", "learner", "tutor", "mentor", "owl", "fox",
	"pointer", "channel", "closure", "struct", "slice", "lambda", "kernel", "rocket",
}

// drawsPerCandidate bounds the random draws spent per requested candidate
const drawsPerCandidate = 4

// Generator draws adjective-noun usernames from a random source
type Generator struct {
	random io.Reader
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{random: rand.Reader}
}

// Generate returns one random username in the format "adjective-noun"
func (g *Generator) Generate() (string, error) {
	adjective, err := g.pick(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := g.pick(nouns)
	if err != nil {
		return "", err
	}
	return adjective + "-" + noun, nil
}

// Candidates returns up to n distinct normalized usernames that pass the
// claim rules. It may return fewer when the draws keep repeating.
func (g *Generator) Candidates(n int) ([]string, error) {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for draws := 0; len(out) < n && draws < n*drawsPerCandidate; draws++ {
		name, err := g.Generate()
		if err != nil {
			return out, err
		}
		name = validation.NormalizeUsername(name)
		if seen[name] || validation.ValidateUsername(name) != nil {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out, nil
}

func (g *Generator) pick(words []string) (string, error) {
	num, err := rand.Int(g.random, big.NewInt(int64(len(words))))
	if err != nil {
		return "", err
	}
	return words[num.Int64()], nil
}
