package main

import (
	"runtime"
	"sync"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/logger"
)

// RunStats are the resource peaks observed while a command ran.
type RunStats struct {
	PeakGoroutines int
	PeakMemoryMB   uint64
	Duration       time.Duration
}

// MemoryMonitor samples goroutine count and heap size until stopped.
type MemoryMonitor struct {
	mu      sync.Mutex
	stats   RunStats
	started time.Time
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewMonitor() *MemoryMonitor {
	return &MemoryMonitor{stop: make(chan struct{}), done: make(chan struct{})}
}

func (m *MemoryMonitor) Start(interval time.Duration, log *logger.Logger) {
	m.started = time.Now()
	m.sample(log)
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.sample(log)
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *MemoryMonitor) sample(log *logger.Logger) {
	const component = "Monitor"

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()
	memoryMB := mem.Alloc / 1024 / 1024

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.PeakGoroutines = max(m.stats.PeakGoroutines, goroutines)
	m.stats.PeakMemoryMB = max(m.stats.PeakMemoryMB, memoryMB)

	log.Debug(component, "goroutines=%d memoryMB=%d peakGoroutines=%d peakMemoryMB=%d", goroutines, memoryMB, m.stats.PeakGoroutines, m.stats.PeakMemoryMB)
}

// Stop ends sampling and returns the peaks. Calling it again returns the
// same figures.
func (m *MemoryMonitor) Stop() RunStats {
	m.once.Do(func() {
		close(m.stop)
		if !m.started.IsZero() {
			<-m.done
		}
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stats.Duration == 0 && !m.started.IsZero() {
		m.stats.Duration = time.Since(m.started)
	}
	return m.stats
}
