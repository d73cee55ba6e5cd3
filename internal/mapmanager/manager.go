package mapmanager

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rconcore/internal/rcon"
)

// CallbackResult tells the Manager whether to keep invoking a registered
// pool-change callback on future changes.
type CallbackResult int

const (
	KeepGoing CallbackResult = iota
	RemoveMe
)

// PoolChangeCallback is invoked with the new PopState whenever the active
// pool changes.
type PoolChangeCallback func(PopState) CallbackResult

const (
	requeryEveryDeltas = 5
	historyCap         = 10
)

var ticketBreakpoints = []struct {
	pop     int
	tickets int
}{
	{8, 75},
	{16, 120},
	{32, 250},
	{64, 400},
}

// ticketsForPop derives a ticket count from player population via
// piecewise-linear interpolation between the configured breakpoints.
func ticketsForPop(pop int) int {
	if pop <= ticketBreakpoints[0].pop {
		return ticketBreakpoints[0].tickets
	}
	last := ticketBreakpoints[len(ticketBreakpoints)-1]
	if pop >= last.pop {
		return last.tickets
	}
	for i := 1; i < len(ticketBreakpoints); i++ {
		hi := ticketBreakpoints[i]
		if pop > hi.pop {
			continue
		}
		lo := ticketBreakpoints[i-1]
		frac := float64(pop-lo.pop) / float64(hi.pop-lo.pop)
		return lo.tickets + int(frac*float64(hi.tickets-lo.tickets))
	}
	return last.tickets
}

// Manager is the Map Manager (MM). Its inner state is protected by a single
// mutex; RCON calls happen after the lock is released, against snapshots
// taken while holding it.
type Manager struct {
	cmd    *rcon.Commander
	logger *slog.Logger

	popStates        []PopState
	vehicleThreshold int
	leniency         int

	mu                 sync.Mutex
	current            PopState
	pop                int
	deltasSincePop     int
	history            []rcon.Map
	callbacks          []PoolChangeCallback
}

// New validates popStates (exactly one with MinPlayers==0) and constructs a
// Manager seeded at that base state.
func New(cmd *rcon.Commander, logger *slog.Logger, popStates []PopState, vehicleThreshold, leniency int) (*Manager, error) {
	if err := ValidatePopStates(popStates); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	base := DeterminePopState(popStates, 0)
	return &Manager{
		cmd:              cmd,
		logger:           logger.With("component", "mapmanager"),
		popStates:        popStates,
		vehicleThreshold: vehicleThreshold,
		leniency:         leniency,
		current:          base,
	}, nil
}

// Start queries the current population and switches to the corresponding
// pop state, in case the process starts on a non-empty server.
func (m *Manager) Start(ctx context.Context) error {
	pop, err := m.queryPop(ctx)
	if err != nil {
		return fmt.Errorf("mapmanager: start: %w", err)
	}
	m.mu.Lock()
	m.pop = pop
	target := DeterminePopState(m.popStates, pop)
	m.mu.Unlock()
	return m.applyPopState(ctx, target, true)
}

func (m *Manager) queryPop(ctx context.Context) (int, error) {
	info, err := m.cmd.ServerInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.PlayerCount, nil
}

// RegisterPoolChangeCallback adds cb to the list invoked on pool change.
func (m *Manager) RegisterPoolChangeCallback(cb PoolChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// HandleEvent updates the population counter on Authenticated/Leave events
// and, every requeryEveryDeltas deltas, invalidates the cached count with a
// fresh server-info query.
func (m *Manager) HandleEvent(ctx context.Context, ev rcon.Event) error {
	switch ev.Kind {
	case rcon.EventAuthenticated:
		return m.popChange(ctx, 1)
	case rcon.EventLeave:
		return m.popChange(ctx, -1)
	default:
		return nil
	}
}

func (m *Manager) popChange(ctx context.Context, delta int) error {
	m.mu.Lock()
	m.pop += delta
	if m.pop < 0 {
		m.pop = 0
	}
	m.deltasSincePop++
	needsRequery := m.deltasSincePop >= requeryEveryDeltas
	if needsRequery {
		m.deltasSincePop = 0
	}
	pop := m.pop
	m.mu.Unlock()

	if needsRequery {
		fresh, err := m.queryPop(ctx)
		if err != nil {
			m.logger.Warn("pop re-query failed, keeping locally tracked count", "error", err)
		} else {
			pop = fresh
			m.mu.Lock()
			m.pop = fresh
			m.mu.Unlock()
		}
	}

	m.mu.Lock()
	candidate := DeterminePopState(m.popStates, pop)
	current := m.current
	m.mu.Unlock()

	if candidate.Name == current.Name {
		return nil
	}
	diff := candidate.MinPlayers - current.MinPlayers
	if diff < 0 {
		diff = -diff
	}
	if diff <= m.leniency {
		return nil
	}
	return m.applyPopState(ctx, candidate, false)
}

// applyPopState commits a pop-state switch: rewrites the authoritative
// maplist when pools differ, then invokes registered callbacks with the
// lock released. force bypasses the "pools differ" check for Start's
// initial application.
func (m *Manager) applyPopState(ctx context.Context, target PopState, force bool) error {
	m.mu.Lock()
	prev := m.current
	poolsDiffer := force || !Equal(prev.Pool, target.Pool)
	m.current = target
	m.mu.Unlock()

	if poolsDiffer {
		if err := m.rewriteMapList(ctx, target.Pool); err != nil {
			return fmt.Errorf("mapmanager: apply pop state %s: %w", target.Name, err)
		}
	}

	m.mu.Lock()
	cbs := make([]PoolChangeCallback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.mu.Unlock()

	var survivors []PoolChangeCallback
	for _, cb := range cbs {
		if cb(target) == KeepGoing {
			survivors = append(survivors, cb)
		}
	}
	m.mu.Lock()
	m.callbacks = survivors
	m.mu.Unlock()

	return nil
}

func (m *Manager) rewriteMapList(ctx context.Context, pool MapPool) error {
	if err := m.cmd.MapListClear(ctx); err != nil {
		return err
	}
	for i, e := range pool {
		if err := m.cmd.MapListAdd(ctx, e.Map, e.Mode, 1, i); err != nil {
			return err
		}
	}
	return nil
}

// SwitchToMap runs the map-switch sequence: insert the target at index 0,
// record it in history, set it as next map, switch to a custom preset,
// apply the vehicles flag and ticket count, run the round, then restore
// baseline settings and remove the inserted entry.
func (m *Manager) SwitchToMap(ctx context.Context, target MapInPool) error {
	m.mu.Lock()
	pop := m.pop
	m.mu.Unlock()

	vehiclesAllowed := true
	if target.Vehicles != nil {
		vehiclesAllowed = *target.Vehicles
	} else {
		vehiclesAllowed = pop >= m.vehicleThreshold
	}

	if err := m.cmd.MapListAdd(ctx, target.Map, target.Mode, 1, 0); err != nil {
		return fmt.Errorf("mapmanager: switch to map: insert: %w", err)
	}
	m.pushHistory(target.Map)

	if err := m.cmd.MapListSetNextMapIndex(ctx, 0); err != nil {
		return fmt.Errorf("mapmanager: switch to map: set next: %w", err)
	}
	if err := m.cmd.SetPreset(ctx, "custom"); err != nil {
		return fmt.Errorf("mapmanager: switch to map: preset: %w", err)
	}
	if err := m.cmd.SetVehiclesSpawnAllowed(ctx, vehiclesAllowed); err != nil {
		return fmt.Errorf("mapmanager: switch to map: vehicles: %w", err)
	}
	if err := m.cmd.SetTickets(ctx, ticketsForPop(pop)); err != nil {
		return fmt.Errorf("mapmanager: switch to map: tickets: %w", err)
	}

	sleep(ctx, 1*time.Second)
	if err := m.cmd.MapListRunNextRound(ctx); err != nil {
		return fmt.Errorf("mapmanager: switch to map: run next round: %w", err)
	}
	sleep(ctx, 10*time.Second)

	if err := m.cmd.SetPreset(ctx, "normal"); err != nil {
		return fmt.Errorf("mapmanager: switch to map: restore preset: %w", err)
	}
	if err := m.cmd.SetVehiclesSpawnAllowed(ctx, true); err != nil {
		return fmt.Errorf("mapmanager: switch to map: restore vehicles: %w", err)
	}
	if err := m.cmd.SetTickets(ctx, ticketBreakpoints[0].tickets); err != nil {
		return fmt.Errorf("mapmanager: switch to map: restore tickets: %w", err)
	}
	if err := m.cmd.MapListRemove(ctx, 0); err != nil {
		return fmt.Errorf("mapmanager: switch to map: remove inserted entry: %w", err)
	}
	return nil
}

func (m *Manager) pushHistory(mp rcon.Map) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]rcon.Map{mp}, m.history...)
	if len(m.history) > historyCap {
		m.history = m.history[:historyCap]
	}
}

// sleep waits d or returns early if ctx is done, so a map switch's
// fixed delays (the RunNextRound settle time, the post-switch grace
// period) stay cancellable during shutdown.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// History returns the most-recent-first map history, trimmed to 10 entries.
func (m *Manager) History() []rcon.Map {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rcon.Map, len(m.history))
	copy(out, m.history)
	return out
}

// Current returns the active PopState.
func (m *Manager) Current() PopState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
