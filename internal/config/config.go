// Package config defines the Go struct shape an external YAML/env loader
// populates, mirroring the way the teacher client's internal/config package
// defines Config/ServerEntry structs consumed by (but not populated inside
// of) the UI layer. Nothing in this package reads a file; Env reads the
// small fixed set of connection environment variables, and every other
// struct here is handed a ready-made value by a collaborator outside this
// module.
package config

import (
	"os"
	"strconv"
)

// Connection is a server's host/port/password, named after the environment
// variables it is conventionally sourced from.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

const (
	envHost     = "BKEN_RCON_HOST"
	envPort     = "BKEN_RCON_PORT"
	envPassword = "BKEN_RCON_PASSWORD"
)

// Env reads the connection's host/port/password from BKEN_RCON_HOST,
// BKEN_RCON_PORT, and BKEN_RCON_PASSWORD. Port defaults to 47200 (the
// Frostbite RCON default) if unset or unparseable.
func Env() Connection {
	port := 47200
	if raw := os.Getenv(envPort); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			port = n
		}
	}
	return Connection{
		Host:     os.Getenv(envHost),
		Port:     port,
		Password: os.Getenv(envPassword),
	}
}

// PoolEntry names one map/mode/vehicles-override triple in a pop state's
// pool, the wire shape of mapman's pool list.
type PoolEntry struct {
	Map      string `yaml:"map"`
	Mode     string `yaml:"mode"`
	Vehicles *bool  `yaml:"vehicles,omitempty"`
}

// PopStateEntry is one named population bracket and its map pool.
type PopStateEntry struct {
	Name       string      `yaml:"name"`
	MinPlayers int         `yaml:"min_players"`
	Pool       []PoolEntry `yaml:"pool"`
}

// MapManager is the mapman configuration block.
type MapManager struct {
	Enabled          bool            `yaml:"enabled"`
	PopStates        []PopStateEntry `yaml:"pop_states"`
	VehicleThreshold int             `yaml:"vehicle_threshold"`
	Leniency         int             `yaml:"leniency"`
}

// MapVote is the mapvote configuration block.
type MapVote struct {
	Enabled               bool            `yaml:"enabled"`
	NOptions              int             `yaml:"n_options"`
	MaxOptions            int             `yaml:"max_options"`
	MaxNomsPerVIP         int             `yaml:"max_noms_per_vip"`
	VoteStartIntervalSecs int             `yaml:"vote_start_interval"`
	SpammerIntervalSecs   int             `yaml:"spammer_interval"`
	EndscreenVoteTimeSecs int             `yaml:"endscreen_votetime"`
	EndscreenPostVoteSecs int             `yaml:"endscreen_post_votetime"`
	VipNom                bool            `yaml:"vip_nom"`
	VipAd                 bool            `yaml:"vip_ad"`
	AnnounceNominator     bool            `yaml:"announce_nominator"`
	VipVoteWeight         int             `yaml:"vip_vote_weight"`
	Animate               bool            `yaml:"animate"`
	AnimateOverride       map[string]bool `yaml:"animate_override"`
	OptionsMinLen         int             `yaml:"options_minlen"`
	OptionsReservedHidden []string        `yaml:"options_reserved_hidden"`
	OptionsReservedTrie   []string        `yaml:"options_reserved_trie"`
}

// WeaponForcer is the weaponforcer configuration block.
type WeaponForcer struct {
	Enabled          bool     `yaml:"enabled"`
	ForbiddenWeapons []string `yaml:"forbidden_weapons"`
}

// PlayerMute is the playermute configuration block.
type PlayerMute struct {
	Enabled            bool            `yaml:"enabled"`
	MutePermissions    map[string]bool `yaml:"mute_permissions"`
	AdminCmdPeriodSecs int             `yaml:"admin_cmd_period"`
}

// BanEnforcer is the ban_enforcer configuration block.
type BanEnforcer struct {
	Enabled bool `yaml:"enabled"`
}

// BadnessPoint is one (seconds-ago, badness) anchor of teamkilling's
// piecewise-linear decay curve.
type BadnessPoint struct {
	SecondsAgo float64 `yaml:"seconds"`
	Badness    float64 `yaml:"badness"`
}

// TeamKilling is the teamkilling configuration block.
type TeamKilling struct {
	Enabled              bool           `yaml:"enabled"`
	BadnessThresholdKick float64        `yaml:"badness_threshold_kick"`
	BadnessTimeScale     []BadnessPoint `yaml:"badness_time_scale"`
	TrimHistoryMinutes   int            `yaml:"trim_history_minutes"`
}

// LoadoutEnforcer is a supplemental block (not in spec.md's configuration
// surface list, recovered from loadoutforcer.rs) for the loadout enforcer.
type LoadoutEnforcer struct {
	Enabled              bool              `yaml:"enabled"`
	BannedWeapons        map[string]string `yaml:"banned_weapons"`
	SpawnGracePeriodSecs int               `yaml:"spawn_grace_period"`
}

// Plugins groups every plugin's configuration block under one root, the
// shape an external YAML loader populates wholesale before handing each
// sub-struct to its component constructor.
type Plugins struct {
	MapManager      MapManager      `yaml:"mapman"`
	MapVote         MapVote         `yaml:"mapvote"`
	WeaponForcer    WeaponForcer    `yaml:"weaponforcer"`
	PlayerMute      PlayerMute      `yaml:"playermute"`
	BanEnforcer     BanEnforcer     `yaml:"ban_enforcer"`
	TeamKilling     TeamKilling     `yaml:"teamkilling"`
	LoadoutEnforcer LoadoutEnforcer `yaml:"loadoutenforcer"`
}
