// Package heartbeat runs the background platform status check. It is purely
// cosmetic and gates no other component.
package heartbeat

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/clock"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/pkg/logger"
)

type Status string

const (
	StatusUpToDate Status = "up-to-date"
	StatusUpdating Status = "updating"
)

type Chance interface {
	Float64() float64
}

type randChance struct{}

func (randChance) Float64() float64 { return rand.Float64() }

type Report struct {
	Status    Status    `json:"status"`
	LastCheck time.Time `json:"lastCheck,omitzero"`
	Checks    int       `json:"checks"`
	Patches   int       `json:"patches"`
}

type Monitor struct {
	cfg    config.Heartbeat
	clock  clock.Clock
	chance Chance
	logger *slog.Logger

	mu     sync.RWMutex
	report Report
	patch  clock.Timer
}

func New(cfg config.Heartbeat, c clock.Clock, chance Chance, log *slog.Logger) *Monitor {
	if c == nil {
		c = clock.Real{}
	}
	if chance == nil {
		chance = randChance{}
	}
	return &Monitor{
		cfg:    cfg,
		clock:  c,
		chance: chance,
		logger: logger.OrDefault(log),
		report: Report{Status: StatusUpToDate},
	}
}

// Run checks on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			if m.patch != nil {
				m.patch.Stop()
			}
			m.mu.Unlock()
			return
		case <-ticker.C():
			m.check()
		}
	}
}

func (m *Monitor) check() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.report.Checks++
	m.report.LastCheck = m.clock.Now()
	if m.report.Status == StatusUpdating {
		return
	}
	if m.chance.Float64() >= m.cfg.PatchProbability {
		return
	}

	m.report.Status = StatusUpdating
	m.report.Patches++
	m.logger.Info("applying platform patch", "duration", m.cfg.PatchDuration)
	m.patch = m.clock.AfterFunc(m.cfg.PatchDuration, m.finish)
}

func (m *Monitor) finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report.Status = StatusUpToDate
	m.patch = nil
}

func (m *Monitor) Report() Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.report
}
