// Package news fetches the scheduled economic calendar. The engine treats
// news purely as an optional quality input, so every failure path here
// degrades to an empty slice at the caller.
package news

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SessionPulse/internal/domain/models"
	"SessionPulse/internal/service/ratelimit"
	pkghttp "SessionPulse/pkg/http"
	applogger "SessionPulse/pkg/logger"
)

// calendar upstreams are rate limited; one request per 30s is plenty for a
// calendar that changes a few times a day.
const (
	limiterKey       = "news_calendar"
	limiterCapacity  = 2
	limiterRefillSec = 1.0 / 30.0
)

// Client implements repository.NewsProvider against a calendar HTTP API.
type Client struct {
	url     string
	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	l       *applogger.Logger

	// last successful fetch, served while the limiter blocks new requests
	mu       sync.Mutex
	cached   []models.NewsEvent
	cachedAt time.Time
}

func NewClient(url string, timeout time.Duration, l *applogger.Logger) *Client {
	return &Client{
		url:     url,
		http:    pkghttp.NewClient(pkghttp.WithTimeout(timeout)),
		limiter: ratelimit.New(),
		l:       l,
	}
}

type calendarEvent struct {
	Currency string `json:"currency"`
	Title    string `json:"title"`
	Time     int64  `json:"time"` // unix seconds
	Impact   string `json:"impact"`
}

// UpcomingHighImpact returns HIGH impact events scheduled within the window.
func (c *Client) UpcomingHighImpact(ctx context.Context, within time.Duration) ([]models.NewsEvent, error) {
	events, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	cutoff := now.Add(within)
	out := make([]models.NewsEvent, 0, 4)
	for _, ev := range events {
		if ev.Impact != models.ImpactHigh {
			continue
		}
		if ev.EventTime.Before(now) || ev.EventTime.After(cutoff) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context) ([]models.NewsEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.limiter.Allow(limiterKey, limiterCapacity, limiterRefillSec) {
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, fmt.Errorf("news calendar rate limited")
	}

	var raw []calendarEvent
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    c.url,
	}, &raw)
	if err != nil {
		c.l.Warn("news calendar fetch failed", applogger.Error(err))
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}

	events := make([]models.NewsEvent, 0, len(raw))
	for _, ev := range raw {
		events = append(events, models.NewsEvent{
			Currency:  ev.Currency,
			Title:     ev.Title,
			EventTime: time.Unix(ev.Time, 0).UTC(),
			Impact:    parseImpact(ev.Impact),
		})
	}
	c.cached = events
	c.cachedAt = time.Now()
	return events, nil
}

func parseImpact(s string) models.NewsImpact {
	switch s {
	case "high", "HIGH":
		return models.ImpactHigh
	case "medium", "MEDIUM":
		return models.ImpactMedium
	default:
		return models.ImpactLow
	}
}

// Noop is the provider used when no calendar URL is configured.
type Noop struct{}

func (Noop) UpcomingHighImpact(context.Context, time.Duration) ([]models.NewsEvent, error) {
	return nil, nil
}
