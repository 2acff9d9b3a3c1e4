package fetcher

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type RobotsCache struct {
	cache     map[string]*RobotsTxt
	ttl       time.Duration
	userAgent string
	mu        sync.RWMutex
}

// robotsRule is one Allow or Disallow path prefix.
type robotsRule struct {
	path  string
	allow bool
}

// RobotsTxt keeps the Allow and Disallow rules that apply to our user agent.
type RobotsTxt struct {
	rules     []robotsRule
	expiresAt time.Time
}

func NewRobotsCache(ttl time.Duration, userAgent string) *RobotsCache {
	return &RobotsCache{
		cache:     make(map[string]*RobotsTxt),
		ttl:       ttl,
		userAgent: userAgent,
	}
}

// IsAllowed never fails on a missing or unreachable robots.txt; those hosts
// are treated as allowing everything.
func (rc *RobotsCache) IsAllowed(ctx context.Context, target *url.URL, client *http.Client) (bool, error) {
	host := target.Host

	rc.mu.RLock()
	cached, exists := rc.cache[host]
	rc.mu.RUnlock()

	if !exists || time.Now().After(cached.expiresAt) {
		cached = &RobotsTxt{
			rules:     rc.fetchRules(ctx, target, client),
			expiresAt: time.Now().Add(rc.ttl),
		}
		rc.mu.Lock()
		rc.cache[host] = cached
		rc.mu.Unlock()
	}

	return !cached.disallows(target.RequestURI()), nil
}

func (rc *RobotsCache) fetchRules(ctx context.Context, target *url.URL, client *http.Client) []robotsRule {
	robotsURL := url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	return parseRobots(resp.Body, rc.userAgent)
}

// parseRobots returns the Allow and Disallow rules of the group matching
// userAgent, or of the "*" group when no specific group exists.
func parseRobots(r io.Reader, userAgent string) []robotsRule {
	agent := strings.ToLower(userAgent)
	if i := strings.IndexAny(agent, "/ "); i > 0 {
		agent = agent[:i]
	}

	var specific, wildcard []robotsRule
	var inSpecific, inWildcard, lastWasAgent bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			if !lastWasAgent {
				inSpecific, inWildcard = false, false
			}
			v := strings.ToLower(value)
			if v == "*" {
				inWildcard = true
			} else if agent != "" && strings.Contains(agent, v) {
				inSpecific = true
			}
			lastWasAgent = true
		case "allow", "disallow":
			lastWasAgent = false
			// An empty Disallow allows everything; an empty Allow says nothing.
			if value == "" {
				continue
			}
			rule := robotsRule{path: value, allow: key == "allow"}
			if inSpecific {
				specific = append(specific, rule)
			}
			if inWildcard {
				wildcard = append(wildcard, rule)
			}
		default:
			lastWasAgent = false
		}
	}

	if specific != nil {
		return specific
	}
	return wildcard
}

// disallows applies the longest matching rule; Allow wins a tie.
func (r *RobotsTxt) disallows(requestURI string) bool {
	best := -1
	disallowed := false
	for _, rule := range r.rules {
		if !strings.HasPrefix(requestURI, rule.path) {
			continue
		}
		n := len(rule.path)
		if n > best || (n == best && rule.allow) {
			best = n
			disallowed = !rule.allow
		}
	}
	return disallowed
}
