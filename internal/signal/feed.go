package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"mirrortrade/internal/domain"
	"mirrortrade/internal/util"
)

// Message is one raw notification from the feed endpoint.
type Message struct {
	ID      string    `json:"id"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Date    time.Time `json:"date"`
}

// FeedSource polls an HTTP endpoint that exposes recent notification
// messages as a JSON array, newest first. Messages are deduplicated by ID
// for the lifetime of the process and consumed oldest-first, so several
// pending signals drain across successive iterations in arrival order.
type FeedSource struct {
	url        string
	normalizer *Normalizer
	freshness  time.Duration
	maxFetch   int
	client     *http.Client
	now        func() time.Time

	// attempts/retryDelay bound the per-poll fetch retries; a poll that
	// still fails is surfaced and simply retried next iteration.
	attempts   int
	retryDelay time.Duration

	seen map[string]struct{}
}

// NewFeedSource creates a FeedSource polling the given URL. Messages older
// than the freshness window are ignored; maxFetch caps the per-poll request
// size (0 means the server default).
func NewFeedSource(url string, normalizer *Normalizer, freshness time.Duration, maxFetch int) *FeedSource {
	return &FeedSource{
		url:        url,
		normalizer: normalizer,
		freshness:  freshness,
		maxFetch:   maxFetch,
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		attempts:   2,
		retryDelay: 200 * time.Millisecond,
		seen:       make(map[string]struct{}),
	}
}

// Next fetches the pending messages and returns the oldest unseen one that
// parses into a signal, or nil when nothing new is actionable. Every unseen
// message that mentions the robot is marked seen whether or not it yields a
// signal, matching the at-most-once delivery contract.
func (s *FeedSource) Next(ctx context.Context) (*domain.Signal, error) {
	var messages []Message
	err := util.Retry(ctx, s.attempts, s.retryDelay, func() error {
		var fetchErr error
		messages, fetchErr = s.fetch(ctx)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("fetching signal feed: %w", err)
	}

	// The feed returns newest first; walk from the end so pending signals
	// are consumed in chronological order.
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if _, ok := s.seen[msg.ID]; ok {
			continue
		}
		if s.now().Sub(msg.Date) > s.freshness {
			continue
		}

		action, symbol, ok := s.normalizer.Parse(msg.Body)
		s.seen[msg.ID] = struct{}{}
		if !ok {
			continue
		}
		return &domain.Signal{Action: action, Symbol: symbol, ID: msg.ID}, nil
	}

	return nil, nil
}

func (s *FeedSource) fetch(ctx context.Context) ([]Message, error) {
	url := s.url
	if s.maxFetch > 0 {
		url = fmt.Sprintf("%s?limit=%d", s.url, s.maxFetch)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decoding feed response: %w", err)
	}
	return messages, nil
}
