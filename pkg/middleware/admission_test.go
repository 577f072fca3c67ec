package middleware

import (
	"bytes"
	"compress/zlib"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ShieldWorks/AdmitGate/mocks"
	"github.com/ShieldWorks/AdmitGate/pkg/app/assessment"
	"github.com/ShieldWorks/AdmitGate/pkg/common"
	domainchallenge "github.com/ShieldWorks/AdmitGate/pkg/domain/challenge"
	domainfp "github.com/ShieldWorks/AdmitGate/pkg/domain/fingerprint"
	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
	infrachallenge "github.com/ShieldWorks/AdmitGate/pkg/infra/challenge"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func assessmentResult(action risk.Action, score int) *assessment.Result {
	a := risk.NewAssessment("device-1")
	a.ThreatScore = score
	a.Action = action
	a.IsThreat = action == risk.ActionBlock || action == risk.ActionChallenge
	return &assessment.Result{
		Fingerprint: domainfp.Fingerprint{Hash: "device-1", DeviceID: "device-1"},
		Assessment:  a,
	}
}

func admissionApp(
	t *testing.T,
	assessor *mocks.AssessmentService,
	challenges *mocks.ChallengeManager,
	handler fiber.Handler,
) *fiber.App {
	t.Helper()
	transport := &Transport{
		Logger:     testLogger(),
		Config:     testConfig(),
		Assessor:   assessor,
		Challenges: challenges,
		Registry:   testRegistry,
	}
	app := fiber.New()
	app.Use(NewAdmissionMiddleware(transport).Handle)
	app.Post("/upload", handler)
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func TestAdmissionAllowsCleanRequest(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionAllow, 10), nil)

	invoked := false
	app := admissionApp(t, assessor, mocks.NewChallengeManager(t), func(c *fiber.Ctx) error {
		invoked = true
		assert.Equal(t, "device-1", c.Locals(string(common.DeviceIdContextKey)))
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, invoked)
}

func TestAdmissionMonitorProceeds(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionMonitor, 45), nil)

	invoked := false
	app := admissionApp(t, assessor, mocks.NewChallengeManager(t), func(c *fiber.Ctx) error {
		invoked = true
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, invoked)
}

func TestAdmissionBlocksHighRisk(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionBlock, 92), nil)

	invoked := false
	app := admissionApp(t, assessor, mocks.NewChallengeManager(t), func(c *fiber.Ctx) error {
		invoked = true
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.False(t, invoked)

	body, _ := io.ReadAll(resp.Body)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "access denied", payload["error"])
	assert.Equal(t, "high", payload["risk_level"])
	assert.EqualValues(t, 92, payload["risk_score"])
}

func TestAdmissionIssuesChallenge(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionChallenge, 68), nil)

	issued := &domainchallenge.Challenge{ID: "ch-1", Type: domainchallenge.TypeCaptcha}
	challenges := mocks.NewChallengeManager(t)
	challenges.On("Issue", mock.Anything, mock.Anything).Return(issued, "signed-token", nil)
	challenges.On("ClientData", issued).Return(map[string]interface{}{"nonce": "abc"})

	invoked := false
	app := admissionApp(t, assessor, challenges, func(c *fiber.Ctx) error {
		invoked = true
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.False(t, invoked)

	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		Error     string `json:"error"`
		Challenge struct {
			Type string                 `json:"type"`
			Data map[string]interface{} `json:"data"`
		} `json:"challenge"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "challenge required", payload.Error)
	assert.Equal(t, "captcha", payload.Challenge.Type)
	assert.Equal(t, "signed-token", payload.Challenge.Data["token"])
	assert.Equal(t, "abc", payload.Challenge.Data["nonce"])
}

func TestAdmissionVerifiedChallengeTokenClearsGate(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionChallenge, 68), nil)

	challenges := mocks.NewChallengeManager(t)
	challenges.On("ParseToken", "good-token").Return("ch-1", nil)
	challenges.On("Get", mock.Anything, "ch-1").Return(&domainchallenge.Challenge{
		ID:       "ch-1",
		DeviceID: "device-1",
		Status:   domainchallenge.StatusVerified,
	}, nil)

	invoked := false
	app := admissionApp(t, assessor, challenges, func(c *fiber.Ctx) error {
		invoked = true
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("POST", "/upload", nil)
	req.Header.Set(common.ChallengeHeader, "good-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, invoked)
}

func TestAdmissionChallengeTokenFromOtherDeviceRejected(t *testing.T) {
	// The token belongs to a verified challenge, but one issued to a
	// different device. The gate stays closed and a fresh challenge goes out.
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionChallenge, 68), nil)

	issued := &domainchallenge.Challenge{ID: "ch-2", Type: domainchallenge.TypeDelay}
	challenges := mocks.NewChallengeManager(t)
	challenges.On("ParseToken", "stolen-token").Return("ch-1", nil)
	challenges.On("Get", mock.Anything, "ch-1").Return(&domainchallenge.Challenge{
		ID:       "ch-1",
		DeviceID: "other-device",
		Status:   domainchallenge.StatusVerified,
	}, nil)
	challenges.On("Issue", mock.Anything, mock.Anything).Return(issued, "fresh-token", nil)
	challenges.On("ClientData", issued).Return(map[string]interface{}{})

	invoked := false
	app := admissionApp(t, assessor, challenges, func(c *fiber.Ctx) error {
		invoked = true
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("POST", "/upload", nil)
	req.Header.Set(common.ChallengeHeader, "stolen-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.False(t, invoked)
}

func TestAdmissionPendingChallengeTokenBurnsNoAttempt(t *testing.T) {
	// Presenting the token while the challenge is still unsolved must not
	// count as a verification attempt.
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionChallenge, 68), nil)

	issued := &domainchallenge.Challenge{ID: "ch-2", Type: domainchallenge.TypeCaptcha}
	challenges := mocks.NewChallengeManager(t)
	challenges.On("ParseToken", "early-token").Return("ch-1", nil)
	challenges.On("Get", mock.Anything, "ch-1").Return(&domainchallenge.Challenge{
		ID:       "ch-1",
		DeviceID: "device-1",
		Status:   domainchallenge.StatusPending,
	}, nil)
	challenges.On("Issue", mock.Anything, mock.Anything).Return(issued, "fresh-token", nil)
	challenges.On("ClientData", issued).Return(map[string]interface{}{})

	app := admissionApp(t, assessor, challenges, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("POST", "/upload", nil)
	req.Header.Set(common.ChallengeHeader, "early-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	challenges.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdmissionRetainsOperationWhenChallengeIssued(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionChallenge, 68), nil)

	issued := &domainchallenge.Challenge{ID: "ch-1", Type: domainchallenge.TypeCaptcha}
	challenges := mocks.NewChallengeManager(t)
	challenges.On("Issue", mock.Anything, mock.Anything).Return(issued, "signed-token", nil)
	challenges.On("ClientData", issued).Return(map[string]interface{}{})

	pending := mocks.NewPendingStore(t)
	pending.On("Save", mock.Anything, "ch-1", mock.MatchedBy(func(op infrachallenge.PendingOperation) bool {
		return op.Method == "POST" &&
			op.Path == "/upload" &&
			string(op.Body) == `{"file":"report.pdf"}` &&
			op.DeviceID == "device-1"
	}), 5*time.Minute).Return(nil)

	transport := &Transport{
		Logger:     testLogger(),
		Config:     testConfig(),
		Assessor:   assessor,
		Challenges: challenges,
		Pending:    pending,
		Registry:   testRegistry,
	}
	app := fiber.New()
	app.Use(NewAdmissionMiddleware(transport).Handle)
	app.Post("/upload", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("POST", "/upload", strings.NewReader(`{"file":"report.pdf"}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAdmissionReplaysRetainedOperationAfterVerification(t *testing.T) {
	// The retry carries a verified token but no body and the wrong path. The
	// stored operation wins: the originally gated request runs, exactly once.
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(assessmentResult(risk.ActionChallenge, 68), nil)

	challenges := mocks.NewChallengeManager(t)
	challenges.On("ParseToken", "good-token").Return("ch-1", nil)
	challenges.On("Get", mock.Anything, "ch-1").Return(&domainchallenge.Challenge{
		ID:       "ch-1",
		DeviceID: "device-1",
		Status:   domainchallenge.StatusVerified,
	}, nil)

	pending := mocks.NewPendingStore(t)
	pending.On("Take", mock.Anything, "ch-1").Return(&infrachallenge.PendingOperation{
		Method:   "POST",
		Path:     "/upload",
		Body:     []byte(`{"file":"report.pdf"}`),
		DeviceID: "device-1",
	}, nil).Once()

	var gotPath, gotBody string
	transport := &Transport{
		Logger:     testLogger(),
		Config:     testConfig(),
		Assessor:   assessor,
		Challenges: challenges,
		Pending:    pending,
		Registry:   testRegistry,
	}
	app := fiber.New()
	app.Use(NewAdmissionMiddleware(transport).Handle)
	app.Post("/upload", func(c *fiber.Ctx) error {
		gotPath = c.Path()
		gotBody = string(c.Body())
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("POST", "/retry", nil)
	req.Header.Set(common.ChallengeHeader, "good-token")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "/upload", gotPath)
	assert.Equal(t, `{"file":"report.pdf"}`, gotBody)
}

func TestAdmissionFailsOpenOnInternalError(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)
	assessor.On("Assess", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	invoked := false
	app := admissionApp(t, assessor, mocks.NewChallengeManager(t), func(c *fiber.Ctx) error {
		invoked = true
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, invoked)
}

func TestAdmissionSkipsOperationalPaths(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)

	app := admissionApp(t, assessor, mocks.NewChallengeManager(t), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assessor.AssertNotCalled(t, "Assess", mock.Anything, mock.Anything)
}

func TestParseSignalBagAcceptsCompressedPayload(t *testing.T) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write([]byte(`{"platform":"Linux","plugins":0}`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	signals := parseSignalBag(encoded)
	require.NotNil(t, signals)
	assert.Equal(t, "Linux", signals["platform"])

	plain := parseSignalBag(`{"platform":"Linux"}`)
	require.NotNil(t, plain)
	assert.Equal(t, "Linux", plain["platform"])

	assert.Nil(t, parseSignalBag("!!definitely-not-a-bag!!"))
	assert.Nil(t, parseSignalBag(""))
}

func TestAdmissionForwardsHeaderAndContentSignals(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)

	var captured assessment.Input
	assessor.On("Assess", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(assessment.Input)
		}).
		Return(assessmentResult(risk.ActionAllow, 5), nil)

	app := admissionApp(t, assessor, mocks.NewChallengeManager(t), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	body := `{"file":"report.pdf"}`
	req := httptest.NewRequest("POST", "/upload", strings.NewReader(body))
	req.Header.Set("Accept-Language", "en-US")

	_, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "en-US", captured.Headers["accept-language"])
	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(sum[:]), captured.ContentHash)
}

func TestAdmissionGeneratesSessionId(t *testing.T) {
	assessor := mocks.NewAssessmentService(t)

	var captured assessment.Input
	assessor.On("Assess", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(assessment.Input)
		}).
		Return(assessmentResult(risk.ActionAllow, 5), nil)

	app := admissionApp(t, assessor, mocks.NewChallengeManager(t), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/upload", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, captured.SessionID)
	assert.NotEmpty(t, resp.Header.Get(common.SessionHeader))
}
