package middleware

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"

	"github.com/ShieldWorks/AdmitGate/pkg/app/assessment"
	"github.com/ShieldWorks/AdmitGate/pkg/common"
	domainchallenge "github.com/ShieldWorks/AdmitGate/pkg/domain/challenge"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
	infrachallenge "github.com/ShieldWorks/AdmitGate/pkg/infra/challenge"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// skipPaths are never gated: operational surfaces and the protection API
// itself, which clients must reach to solve challenges.
var skipPaths = []string{
	"/health",
	"/metrics",
	"/protection/",
}

// replayedLocal marks a request restarted from a retained pending operation
// so the second routing pass does not assess it again.
const replayedLocal = "admission_replayed"

type AdmissionMiddleware struct {
	*Transport
}

func NewAdmissionMiddleware(t *Transport) Middleware {
	return &AdmissionMiddleware{Transport: t}
}

// Handle scores the request and enforces the recommended action. Internal
// scoring failures fail open: an unscored request proceeds as allowed.
func (m *AdmissionMiddleware) Handle(c *fiber.Ctx) error {
	if c.Locals(replayedLocal) != nil {
		return c.Next()
	}

	path := c.Path()
	for _, skip := range skipPaths {
		if path == skip || strings.HasPrefix(path, skip) {
			return c.Next()
		}
	}

	sessionID := c.Get(common.SessionHeader)
	if sessionID == "" {
		sessionID = uuid.New().String()
		c.Set(common.SessionHeader, sessionID)
	}
	c.Locals(string(common.SessionIdContextKey), sessionID)

	result, err := m.Assessor.Assess(c.Context(), assessment.Input{
		Signals:     parseSignalBag(c.Get(common.SignalBagHeader)),
		Headers:     requestHeaders(c),
		IP:          c.IP(),
		UserAgent:   c.Get(fiber.HeaderUserAgent),
		SessionID:   sessionID,
		FileName:    c.Get("X-File-Name"),
		FileSize:    int64(c.Request().Header.ContentLength()),
		ContentHash: contentHash(c.Body()),
	})
	if err != nil {
		m.Logger.WithError(err).Error("admission assessment failed, failing open")
		return c.Next()
	}

	a := result.Assessment
	c.Locals(string(common.DeviceIdContextKey), a.DeviceID)
	c.Locals(string(common.FingerprintIdContextKey), result.Fingerprint.Hash)
	c.Locals(string(common.AssessmentContextKey), a)

	switch a.Action {
	case risk.ActionBlock:
		m.Logger.WithFields(logrus.Fields{
			"device_id":    a.DeviceID,
			"threat_score": a.ThreatScore,
			"confidence":   a.Confidence,
		}).Warn("request blocked")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":      "access denied",
			"risk_level": "high",
			"risk_score": a.ThreatScore,
		})

	case risk.ActionChallenge:
		if challengeID, passed := m.passedChallenge(c, a.DeviceID); passed {
			return m.resumePending(c, challengeID, a.DeviceID)
		}
		return m.issueChallenge(c, a)

	case risk.ActionMonitor:
		m.Logger.WithFields(logrus.Fields{
			"device_id":    a.DeviceID,
			"threat_score": a.ThreatScore,
			"confidence":   a.Confidence,
		}).Info("request flagged for monitoring")
		return c.Next()

	default:
		return c.Next()
	}
}

// passedChallenge reports whether the request carries a token for a verified
// challenge that was issued to this same device. The challenge is inspected
// without touching its attempt counter; a token minted for another device
// never clears the gate.
func (m *AdmissionMiddleware) passedChallenge(c *fiber.Ctx, deviceID string) (string, bool) {
	token := c.Get(common.ChallengeHeader)
	if token == "" {
		return "", false
	}

	challengeID, err := m.Challenges.ParseToken(token)
	if err != nil {
		m.Logger.WithError(err).Debug("rejected challenge token")
		return "", false
	}

	ch, err := m.Challenges.Get(c.Context(), challengeID)
	if err != nil || ch == nil {
		return "", false
	}
	if ch.DeviceID != deviceID {
		m.Logger.WithFields(logrus.Fields{
			"challenge_id": challengeID,
			"device_id":    deviceID,
		}).Warn("challenge token presented by a different device")
		return "", false
	}

	return challengeID, ch.Status == domainchallenge.StatusVerified
}

// resumePending replays the operation that was held back when the challenge
// was issued. The stored request wins over whatever the retry carried, so the
// operation that runs is exactly the one that was originally gated. The entry
// is consumed on first use.
func (m *AdmissionMiddleware) resumePending(c *fiber.Ctx, challengeID, deviceID string) error {
	if m.Pending == nil {
		return c.Next()
	}

	op, err := m.Pending.Take(c.Context(), challengeID)
	if err != nil {
		m.Logger.WithError(err).Warn("pending operation lookup failed")
		return c.Next()
	}
	if op == nil || op.DeviceID != deviceID {
		return c.Next()
	}

	c.Locals(replayedLocal, true)
	c.Request().Header.SetMethod(op.Method)
	c.Request().SetRequestURI(op.Path)
	c.Request().SetBody(op.Body)
	return c.RestartRouting()
}

func (m *AdmissionMiddleware) issueChallenge(c *fiber.Ctx, a *risk.Assessment) error {
	ch, token, err := m.Challenges.Issue(c.Context(), a)
	if err != nil {
		m.Logger.WithError(err).Error("failed to issue challenge, failing open")
		return c.Next()
	}

	if m.Pending != nil {
		op := infrachallenge.PendingOperation{
			Method:   c.Method(),
			Path:     c.OriginalURL(),
			Body:     append([]byte(nil), c.Body()...),
			DeviceID: a.DeviceID,
		}
		if err := m.Pending.Save(c.Context(), ch.ID, op, m.Config.Challenge.Timeout); err != nil {
			m.Logger.WithError(err).Warn("failed to retain pending operation")
		}
	}

	data := m.Challenges.ClientData(ch)
	data["token"] = token

	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "challenge required",
		"challenge": fiber.Map{
			"type": ch.Type,
			"data": data,
		},
	})
}

// parseSignalBag decodes the signal header, either plain JSON or the
// base64-wrapped zlib form collection scripts send. A malformed bag degrades
// to empty; fingerprint confidence absorbs the missing sources.
func parseSignalBag(raw string) map[string]interface{} {
	if raw == "" {
		return nil
	}

	var signals map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &signals); err == nil {
		return signals
	}

	data, err := decompressSignals(raw)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &signals); err != nil {
		return nil
	}
	return signals
}

func decompressSignals(raw string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}

	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

func requestHeaders(c *fiber.Ctx) map[string]string {
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[strings.ToLower(string(key))] = string(value)
	})
	return headers
}

func contentHash(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
