package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/fingerprint"
	"github.com/avct/uasurfer"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const (
	AnomalyAutomationUA     = "automation tool user agent"
	AnomalyBotUA            = "bot user agent"
	AnomalyHeadless         = "headless browser detected"
	AnomalyNoPluginsDesktop = "zero plugins on desktop browser"
	AnomalyNoTouchMobile    = "mobile user agent without touch capability"
	AnomalyNoLanguages      = "no browser languages reported"

	anomalyConfidencePenalty = 0.8
)

// signalSources are the client-side sub-signals the collector expects. Each
// present source raises confidence; absence degrades it, never errors.
var signalSources = []string{
	"canvas",
	"audio",
	"webgl",
	"fonts",
	"plugins",
	"screen",
	"timezone",
	"touch",
	"hardware_concurrency",
	"device_memory",
}

var automationMarkers = []string{
	"headlesschrome",
	"phantomjs",
	"selenium",
	"webdriver",
	"puppeteer",
	"playwright",
	"electron",
}

//go:generate mockery --name=Collector --dir=. --output=../../../mocks --filename=fingerprint_collector_mock.go --case=underscore --with-expecter
type Collector interface {
	Collect(rawSignals map[string]interface{}, ip, userAgent string) fingerprint.Fingerprint
}

type collector struct {
	logger *logrus.Logger
}

func NewCollector(logger *logrus.Logger) Collector {
	return &collector{logger: logger}
}

// Collect builds a canonical fingerprint from a best-effort signal bag. It
// never fails: missing sub-signals lower confidence instead of erroring.
func (c *collector) Collect(rawSignals map[string]interface{}, ip, userAgent string) fingerprint.Fingerprint {
	if rawSignals == nil {
		rawSignals = map[string]interface{}{}
	}

	hash := canonicalHash(rawSignals, userAgent)
	confidence := sourceCoverage(rawSignals)
	tags := c.detectAnomalies(rawSignals, userAgent)

	for range tags {
		confidence *= anomalyConfidencePenalty
	}

	return fingerprint.Fingerprint{
		Hash:        hash,
		DeviceID:    hash,
		IP:          strings.TrimSpace(ip),
		UserAgent:   strings.ToLower(strings.TrimSpace(userAgent)),
		Confidence:  confidence,
		AnomalyTags: tags,
		CreatedAt:   time.Now(),
	}
}

// canonicalHash sorts attributes by key before hashing so semantically
// identical signal bags hash identically regardless of collection order.
func canonicalHash(signals map[string]interface{}, userAgent string) string {
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("ua=")
	sb.WriteString(strings.ToLower(strings.TrimSpace(userAgent)))
	for _, k := range keys {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", signals[k]))
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func sourceCoverage(signals map[string]interface{}) float64 {
	present := 0
	for _, source := range signalSources {
		if v, ok := signals[source]; ok && v != nil && fmt.Sprintf("%v", v) != "" {
			present++
		}
	}
	return float64(present) / float64(len(signalSources))
}

// signalBag is the typed view of the anomaly-relevant sub-signals. The bag
// arrives as loose JSON, so decoding is weak and lossy on purpose.
type signalBag struct {
	Plugins   *float64  `mapstructure:"plugins"`
	Touch     *bool     `mapstructure:"touch"`
	Languages *[]string `mapstructure:"languages"`
}

func (c *collector) decodeSignals(signals map[string]interface{}) signalBag {
	var bag signalBag
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &bag,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return bag
	}
	if err := decoder.Decode(signals); err != nil {
		c.logger.WithError(err).Debug("partially decoded signal bag")
	}
	return bag
}

func (c *collector) detectAnomalies(signals map[string]interface{}, userAgent string) []string {
	var tags []string
	ua := strings.ToLower(userAgent)

	for _, marker := range automationMarkers {
		if strings.Contains(ua, marker) {
			if marker == "headlesschrome" {
				tags = append(tags, AnomalyHeadless)
			} else {
				tags = append(tags, AnomalyAutomationUA)
			}
			break
		}
	}

	parsed := uasurfer.Parse(userAgent)

	if parsed.IsBot() || strings.Contains(ua, "bot") || strings.Contains(ua, "crawl") || strings.Contains(ua, "spider") {
		tags = append(tags, AnomalyBotUA)
	}

	bag := c.decodeSignals(signals)

	if parsed.DeviceType == uasurfer.DeviceComputer {
		if bag.Plugins != nil && *bag.Plugins == 0 {
			tags = append(tags, AnomalyNoPluginsDesktop)
		}
	}

	if parsed.DeviceType == uasurfer.DevicePhone || parsed.DeviceType == uasurfer.DeviceTablet {
		if bag.Touch != nil && !*bag.Touch {
			tags = append(tags, AnomalyNoTouchMobile)
		}
	}

	if bag.Languages != nil && len(*bag.Languages) == 0 {
		tags = append(tags, AnomalyNoLanguages)
	}

	return tags
}
