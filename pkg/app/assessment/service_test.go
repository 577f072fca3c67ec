package assessment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuspiciousHeaderCount(t *testing.T) {
	browser := map[string]string{
		"accept":          "text/html",
		"accept-language": "en-US",
		"user-agent":      "Mozilla/5.0",
	}
	assert.Zero(t, suspiciousHeaderCount(browser))

	bare := map[string]string{"user-agent": "python-requests/2.31"}
	assert.Equal(t, 2, suspiciousHeaderCount(bare))

	marked := map[string]string{
		"accept":          "*/*",
		"accept-language": "en-US",
		"x-selenium":      "1",
	}
	assert.Equal(t, 1, suspiciousHeaderCount(marked))

	// no headers at all means the transport never surfaced them; do not
	// punish what was not observed
	assert.Zero(t, suspiciousHeaderCount(nil))
}
