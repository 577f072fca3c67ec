package processing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrEmptyPayload = errors.New("empty payload")

// Request is one unit of protected work: a file whose metadata the caller
// wants extracted.
type Request struct {
	FileName string
	Payload  []byte
}

type Result struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	Extension   string    `json:"extension"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	ProcessedAt time.Time `json:"processed_at"`
}

//go:generate mockery --name=Processor --dir=. --output=../../../mocks --filename=processor_mock.go --case=underscore --with-expecter
type Processor interface {
	Process(ctx context.Context, req Request) (*Result, error)
}

type processor struct {
	logger *logrus.Logger
}

func NewProcessor(logger *logrus.Logger) Processor {
	return &processor{logger: logger}
}

func (p *processor) Process(_ context.Context, req Request) (*Result, error) {
	if len(req.Payload) == 0 {
		return nil, ErrEmptyPayload
	}

	sum := sha256.Sum256(req.Payload)

	result := &Result{
		ID:          uuid.New().String(),
		FileName:    req.FileName,
		Extension:   strings.ToLower(filepath.Ext(req.FileName)),
		ContentType: http.DetectContentType(req.Payload),
		Size:        int64(len(req.Payload)),
		SHA256:      hex.EncodeToString(sum[:]),
		ProcessedAt: time.Now(),
	}

	p.logger.WithFields(logrus.Fields{
		"id":           result.ID,
		"file_name":    result.FileName,
		"content_type": result.ContentType,
		"size":         result.Size,
	}).Info("file metadata extracted")

	return result, nil
}
