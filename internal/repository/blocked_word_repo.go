package repository

import (
	"context"
	"fmt"
	"strings"

	"studytrail/internal/database"
)

// BlockedWordRepository holds words that may not appear in a claimed username
type BlockedWordRepository struct {
	db database.DBTX
}

// NewBlockedWordRepository creates a new blocked word repository
func NewBlockedWordRepository(db database.DBTX) *BlockedWordRepository {
	return &BlockedWordRepository{db: db}
}

// Count returns the number of stored words
func (r *BlockedWordRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocked_words").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count blocked words: %w", err)
	}
	return count, nil
}

// AddWords inserts words, skipping blanks and duplicates. It returns how many were added.
func (r *BlockedWordRepository) AddWords(ctx context.Context, words []string) (int, error) {
	added := 0
	seen := make(map[string]bool, len(words))
	for _, word := range words {
		word = strings.TrimSpace(strings.ToLower(word))
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true

		exists, err := r.contains(ctx, word)
		if err != nil {
			return added, err
		}
		if exists {
			continue
		}
		if _, err := r.db.ExecContext(ctx, "INSERT INTO blocked_words (word) VALUES (?)", word); err != nil {
			return added, fmt.Errorf("failed to add blocked word: %w", err)
		}
		added++
	}
	return added, nil
}

// ContainsBlockedWord reports whether username, or any of its hyphen or
// underscore separated parts, is a blocked word
func (r *BlockedWordRepository) ContainsBlockedWord(ctx context.Context, username string) (bool, error) {
	username = strings.ToLower(username)
	candidates := append([]string{username}, strings.FieldsFunc(username, func(c rune) bool {
		return c == '-' || c == '_'
	})...)

	for _, candidate := range candidates {
		blocked, err := r.contains(ctx, candidate)
		if err != nil {
			return false, err
		}
		if blocked {
			return true, nil
		}
	}
	return false, nil
}

func (r *BlockedWordRepository) contains(ctx context.Context, word string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocked_words WHERE word = ?", word).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check blocked word: %w", err)
	}
	return count > 0, nil
}
