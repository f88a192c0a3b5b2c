package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// BlockedWordStore is the persistence behind the username word filter
type BlockedWordStore interface {
	Count(ctx context.Context) (int, error)
	AddWords(ctx context.Context, words []string) (int, error)
	ContainsBlockedWord(ctx context.Context, username string) (bool, error)
}

// WordFilter rejects usernames containing blocked words
type WordFilter struct {
	store      BlockedWordStore
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWordFilter creates a word filter over store
func NewWordFilter(store BlockedWordStore, logger *zap.Logger) *WordFilter {
	return &WordFilter{
		store:      store,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Seed downloads a newline separated word list from url when the filter is empty
func (f *WordFilter) Seed(ctx context.Context, url string) error {
	count, err := f.store.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		f.logger.Info("blocked word filter already populated", zap.Int("words", count))
		return nil
	}

	f.logger.Info("downloading blocked word list", zap.String("url", url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download blocked word list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status code from blocked word list: %d", resp.StatusCode)
	}

	added, err := f.SeedFrom(ctx, resp.Body)
	if err != nil {
		return err
	}
	f.logger.Info("blocked word filter populated", zap.Int("words", added))
	return nil
}

// SeedFrom adds one word per line from r and returns how many were added
func (f *WordFilter) SeedFrom(ctx context.Context, r io.Reader) (int, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading blocked words: %w", err)
	}
	return f.store.AddWords(ctx, words)
}

// IsBlocked reports whether username contains a blocked word
func (f *WordFilter) IsBlocked(ctx context.Context, username string) (bool, error) {
	return f.store.ContainsBlockedWord(ctx, username)
}
