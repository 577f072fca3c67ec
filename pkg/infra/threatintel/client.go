package threatintel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/cache"
	"github.com/ShieldWorks/AdmitGate/pkg/config"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const intelCacheTTL = 10 * time.Minute

// Intel is the read-only reputation lookup result for one IP.
type Intel struct {
	RiskScore float64 `json:"risk_score"`
	Country   string  `json:"country"`
	IsTor     bool    `json:"is_tor"`
	IsVpn     bool    `json:"is_vpn"`
	// Degraded is set when the upstream was unavailable and a neutral result
	// was substituted.
	Degraded bool `json:"-"`
}

//go:generate mockery --name=Client --dir=. --output=../../../mocks --filename=threatintel_client_mock.go --case=underscore --with-expecter
type Client interface {
	Lookup(ctx context.Context, ip string) Intel
}

type client struct {
	logger  *logrus.Logger
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	local   *cache.TTLMap
	baseURL string
	apiKey  string
}

func NewClient(logger *logrus.Logger, cfg config.ThreatIntelConfig) Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "threat_intel",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("threat intel circuit breaker state change")
		},
	})

	return &client{
		logger:  logger,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		local:   cache.NewTTLMap(intelCacheTTL),
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
	}
}

// Lookup queries the reputation service. Upstream failure is never surfaced:
// the request proceeds with a neutral, zero-risk contribution and the
// degradation is logged. Successful lookups are cached per IP so the hot path
// rarely leaves the process.
func (c *client) Lookup(ctx context.Context, ip string) Intel {
	if c.baseURL == "" {
		return Intel{Degraded: true}
	}

	if cached, ok := c.local.Get(ip); ok {
		if intel, ok := cached.(Intel); ok {
			return intel
		}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doLookup(ctx, ip)
	})
	if err != nil {
		c.logger.WithError(err).WithField("ip", ip).Warn("threat intel lookup degraded")
		return Intel{Degraded: true}
	}

	intel, ok := result.(Intel)
	if !ok {
		return Intel{Degraded: true}
	}
	c.local.Set(ip, intel)
	return intel
}

func (c *client) doLookup(ctx context.Context, ip string) (Intel, error) {
	endpoint := fmt.Sprintf("%s/v1/ip/%s", c.baseURL, url.PathEscape(ip))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Intel{}, fmt.Errorf("failed to build threat intel request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Intel{}, fmt.Errorf("threat intel request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Intel{}, fmt.Errorf("threat intel returned status %d", resp.StatusCode)
	}

	var intel Intel
	if err := json.NewDecoder(resp.Body).Decode(&intel); err != nil {
		return Intel{}, fmt.Errorf("failed to decode threat intel response: %w", err)
	}
	return intel, nil
}
