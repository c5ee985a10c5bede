package crawler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/temoto/robotstxt"

	"sjsage522/specialsworker/helpers"
	"sjsage522/specialsworker/logger"
	"sjsage522/specialsworker/pkg/errors"
)

// Policy answers whether an identity may crawl a path
type Policy interface {
	Allows(identity Identity, path string) bool
}

type robotsPolicy struct {
	data *robotstxt.RobotsData
}

func (p robotsPolicy) Allows(identity Identity, path string) bool {
	return p.data.TestAgent(path, string(identity))
}

// denyAll is the policy of a site that refuses access to its robots.txt
type denyAll struct{}

func (denyAll) Allows(Identity, string) bool { return false }

// IdentityNegotiator picks a crawler identity the site's robots.txt permits
type IdentityNegotiator struct {
	client *http.Client
	log    *logger.Logger
}

// NewIdentityNegotiator creates a negotiator fetching robots.txt with client
func NewIdentityNegotiator(client *http.Client) *IdentityNegotiator {
	return &IdentityNegotiator{
		client: client,
		log:    logger.ForComponent("identity"),
	}
}

// Negotiate returns an identity permitted to crawl baseURL. It never fails: when the
// policy cannot be read or denies every candidate, FallbackIdentity is returned.
func (n *IdentityNegotiator) Negotiate(ctx context.Context, baseURL string) Identity {
	policy, err := n.fetchPolicy(ctx, baseURL)
	if err != nil {
		n.log.Warn().Err(err).Str("fallback", string(FallbackIdentity)).Msg("Exclusion policy unavailable")
		return FallbackIdentity
	}

	identity, tested := ChooseIdentity(policy, crawlPath(baseURL))
	n.log.Info().
		Str("identity", string(identity)).
		Int("candidates_tested", tested).
		Msg("Negotiated crawler identity")
	return identity
}

func (n *IdentityNegotiator) fetchPolicy(ctx context.Context, baseURL string) (Policy, error) {
	robotsURL := strings.TrimRight(baseURL, "/") + "/robots.txt"

	status, body, err := helpers.FetchSimply(ctx, n.client, robotsURL, string(SeedIdentity))
	if err != nil {
		return nil, errors.NewRobots("identity", "fetch robots.txt", err)
	}

	// 401 and 403 deny every agent; other 4xx answers allow every agent
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return denyAll{}, nil
	}

	data, err := robotstxt.FromStatusAndBytes(status, body)
	if err != nil {
		return nil, errors.NewRobots("identity", "parse robots.txt", err)
	}
	return robotsPolicy{data: data}, nil
}

// ChooseIdentity tests SeedIdentity and up to MaxIdentityMutations successors against
// policy. It returns the first permitted candidate, or FallbackIdentity, together with
// the number of candidates tested.
func ChooseIdentity(policy Policy, path string) (Identity, int) {
	candidate := SeedIdentity
	for tested := 1; ; tested++ {
		if policy.Allows(candidate, path) {
			return candidate, tested
		}
		if tested > MaxIdentityMutations {
			return FallbackIdentity, tested
		}
		candidate = NextCandidate(candidate)
	}
}

// NextCandidate mutates an identity: a trailing digit is incremented, otherwise "1" is appended.
// A trailing 9 becomes 10.
func NextCandidate(identity Identity) Identity {
	s := string(identity)
	if s == "" {
		return "1"
	}
	last := s[len(s)-1]
	if last >= '0' && last <= '9' {
		return Identity(s[:len(s)-1] + strconv.Itoa(int(last-'0')+1))
	}
	return Identity(s + "1")
}

// crawlPath is the path of baseURL as robots rules see it
func crawlPath(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
