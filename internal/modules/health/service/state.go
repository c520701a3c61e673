package service

import (
	"sync/atomic"
	"time"
)

// State — атомарный срез живости процесса: готовность (после warmup),
// состояние WS-стрима и возраст последнего прайс-тика.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected  atomic.Bool
	lastTickUnix atomic.Int64 // unix seconds
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }

// PriceAge — сколько прошло с последнего тика; 0, если тиков ещё не было.
func (s *State) PriceAge() time.Duration {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return 0
	}
	return time.Since(time.Unix(u, 0))
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
