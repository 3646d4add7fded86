package policy

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/raakeshmj/socialplane/internal/limiter"
)

// Matcher defines criteria to apply a policy
type Matcher struct {
	Method string `json:"method,omitempty"` // "*" or specific
	Path   string `json:"path"`             // prefix, on a segment boundary
}

// Rules defines what to enforce
type Rules struct {
	AuthRequired bool `json:"auth_required"`
	// Bucket names a registry entry. Empty means the route is not rate limited.
	Bucket string `json:"bucket,omitempty"`
}

// Policy is a named set of rules
type Policy struct {
	ID      string  `json:"id"`
	Matcher Matcher `json:"matcher"`
	Rules   Rules   `json:"rules"`
}

// Default applies when nothing matches.
var Default = Policy{ID: "default", Rules: Rules{AuthRequired: true, Bucket: limiter.BucketAPIDefault}}

// Engine evaluates requests against policies
type Engine struct {
	mu       sync.RWMutex
	policies []Policy
}

func NewEngine() *Engine {
	return &Engine{
		policies: []Policy{},
	}
}

// LoadPolicies validates and replaces the current set. On error the old set stays.
func (e *Engine) LoadPolicies(newPolicies []Policy) error {
	var errs []error
	for _, p := range newPolicies {
		if err := validate(p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	ps := make([]Policy, len(newPolicies))
	copy(ps, newPolicies)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = ps
	return nil
}

func validate(p Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy for %q has no id", p.Matcher.Path)
	}
	if !strings.HasPrefix(p.Matcher.Path, "/") {
		return fmt.Errorf("policy %s: path %q must start with /", p.ID, p.Matcher.Path)
	}
	if p.Rules.Bucket != "" {
		if _, ok := limiter.Lookup(p.Rules.Bucket); !ok {
			return fmt.Errorf("policy %s: %w: %s", p.ID, limiter.ErrUnknownBucket, p.Rules.Bucket)
		}
	}
	return nil
}

func (e *Engine) Policies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Policy, len(e.policies))
	copy(out, e.policies)
	return out
}

// Evaluate returns the most specific matching policy: the longest path wins and an
// exact method beats a wildcard. Ties keep list order. Nil when nothing matches.
func (e *Engine) Evaluate(r *http.Request) *Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var best *Policy
	bestScore := -1
	for i := range e.policies {
		p := &e.policies[i]
		if !match(p.Matcher, r) {
			continue
		}
		score := len(p.Matcher.Path) * 2
		if p.Matcher.Method != "" && p.Matcher.Method != "*" {
			score++
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

func match(m Matcher, r *http.Request) bool {
	if m.Method != "" && m.Method != "*" && !strings.EqualFold(m.Method, r.Method) {
		return false
	}

	path := r.URL.Path
	switch {
	case path == m.Path:
		return true
	case strings.HasSuffix(m.Path, "/"):
		return strings.HasPrefix(path, m.Path)
	default:
		return strings.HasPrefix(path, m.Path+"/")
	}
}
