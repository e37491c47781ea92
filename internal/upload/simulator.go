// Package upload simulates an unreliable cloud transfer: fixed latency, an
// independent failure chance per call and a receipt on success.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/fjod/storefront/domain"
	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/pkg/logger"
)

// Chance yields values in [0, 1).
type Chance interface {
	Float64() float64
}

// sharedChance draws from the global source, which is safe for concurrent use.
type sharedChance struct{}

func (sharedChance) Float64() float64 { return rand.Float64() }

type Metrics interface {
	ObserveUpload(result string)
}

type File struct {
	Name    string
	Content []byte
}

type Receipt struct {
	URL         string `json:"url"`
	Size        int    `json:"size"`
	ContentHash string `json:"contentHash"`
}

type BackupReceipt struct {
	UserID string `json:"userId"`
	Size   int    `json:"size"`
	At     string `json:"at"`
}

type Simulator struct {
	cfg     config.Upload
	clock   clock.Clock
	chance  Chance
	metrics Metrics
	logger  *slog.Logger
}

func NewSimulator(cfg config.Upload, c clock.Clock, chance Chance, metrics Metrics, log *slog.Logger) *Simulator {
	if c == nil {
		c = clock.Real{}
	}
	if chance == nil {
		chance = sharedChance{}
	}
	return &Simulator{
		cfg:     cfg,
		clock:   c,
		chance:  chance,
		metrics: metrics,
		logger:  logger.OrDefault(log),
	}
}

// Upload waits the configured latency, then fails with ErrNetwork with the
// configured probability. It is never retried.
func (s *Simulator) Upload(_ context.Context, f File) (*Receipt, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrValidation)
	}
	s.wait(s.cfg.Latency)

	if s.chance.Float64() < s.cfg.FailureProbability {
		s.observe("failure")
		s.logger.Warn("simulated upload failed", "file", f.Name, "size", len(f.Content))
		return nil, fmt.Errorf("%w: upload of %q interrupted", domain.ErrNetwork, f.Name)
	}

	sum := sha256.Sum256(f.Content)
	receipt := &Receipt{
		URL:         fmt.Sprintf("%s/%s-%d", strings.TrimRight(s.cfg.BaseURL, "/"), f.Name, s.clock.Now().UnixMilli()),
		Size:        len(f.Content),
		ContentHash: "sha256-" + hex.EncodeToString(sum[:]),
	}
	s.observe("success")
	return receipt, nil
}

// Backup waits the backup latency and always succeeds.
func (s *Simulator) Backup(_ context.Context, uid string, data []byte) (*BackupReceipt, error) {
	if uid == "" {
		return nil, domain.ErrAnonymous
	}
	s.wait(s.cfg.BackupLatency)
	return &BackupReceipt{
		UserID: uid,
		Size:   len(data),
		At:     s.clock.Now().UTC().Format(time.RFC3339),
	}, nil
}

// wait is not cut short by cancellation; a started transfer runs to its end.
func (s *Simulator) wait(d time.Duration) {
	if d > 0 {
		<-s.clock.After(d)
	}
}

func (s *Simulator) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveUpload(result)
	}
}
