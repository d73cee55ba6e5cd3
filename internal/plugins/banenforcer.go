package plugins

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rconcore/internal/rcon"
)

// BanStatus mirrors the external ban store's tri-state record status.
type BanStatus int

const (
	BanStatusNone BanStatus = iota
	BanStatusActive
	BanStatusExpired
	BanStatusDisabled
)

// BanRecord is one row from the external ban store, looked up by GUID. A
// zero-value BanRecord (Status == BanStatusNone) means no record exists.
type BanRecord struct {
	GUID    string
	Status  BanStatus
	EndTime time.Time
	Reason  string
}

// BanStore looks bans up by EA GUID, kept external to this plugin so it can
// be backed by a shared database.
type BanStore interface {
	Lookup(ctx context.Context, guid string) (BanRecord, error)
}

// KickBanner is the subset of *rcon.Commander BanEnforcer needs, narrowed
// to an interface so a test can fake the RCON round trip instead of
// requiring a live transport.Transport.
type KickBanner interface {
	BanAdd(ctx context.Context, subject rcon.BanSubject, duration rcon.BanDuration, reason string) error
	Kick(ctx context.Context, player, reason string) error
}

type BanEnforcerConfig struct {
	Enabled bool
}

// BanEnforcer checks a freshly authenticated player against BanStore and
// kicks them if their ban is active and not yet expired. A short GUID
// tempban is issued first so the game's own ban list also rejects them.
type BanEnforcer struct {
	store  BanStore
	cmd    KickBanner
	logger *slog.Logger
	cfg    BanEnforcerConfig
	now    func() time.Time
}

func NewBanEnforcer(cmd KickBanner, store BanStore, logger *slog.Logger, cfg BanEnforcerConfig) *BanEnforcer {
	if logger == nil {
		logger = slog.Default()
	}
	return &BanEnforcer{store: store, cmd: cmd, logger: logger.With("component", "banenforcer"), cfg: cfg, now: time.Now}
}

func (b *BanEnforcer) Name() string { return "banenforcer" }

func (b *BanEnforcer) Start(ctx context.Context) error { return nil }

func (b *BanEnforcer) HandleEvent(ctx context.Context, ev rcon.Event) error {
	if ev.Kind != rcon.EventAuthenticated {
		return nil
	}

	ban, err := b.store.Lookup(ctx, ev.Player.EAID)
	if err != nil {
		b.logger.Error("ban lookup failed, ignoring", "player", ev.Player.Name, "error", err)
		return nil
	}
	if ban.Status != BanStatusActive {
		return nil
	}
	if !b.now().Before(ban.EndTime) {
		b.logger.Warn("ban record is active but end time is in the past", "player", ev.Player.Name, "end", ban.EndTime)
		return nil
	}

	b.logger.Info("kicking banned player", "player", ev.Player.Name, "reason", ban.Reason)
	if b.cmd == nil {
		return nil
	}

	subject := rcon.BanSubject{Kind: rcon.BanByGUID, Value: ev.Player.EAID}
	if err := b.cmd.BanAdd(ctx, subject, rcon.BanDuration{Kind: rcon.BanSeconds, N: 1}, ban.Reason); err != nil && !errors.Is(err, rcon.ErrBanListFull) {
		b.logger.Error("tempban add failed", "player", ev.Player.Name, "error", err)
	}
	if err := b.cmd.Kick(ctx, ev.Player.Name, ban.Reason); err != nil {
		b.logger.Error("kick failed", "player", ev.Player.Name, "error", err)
	}
	return nil
}
