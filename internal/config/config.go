// Package config loads service configuration from YAML files. Every field has
// a sensible default so all three services run with no config file at all.
// Durations are declared in whole seconds in the file and exposed as
// time.Duration through accessors.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// League configures the league manager service.
type League struct {
	LeagueID    string `yaml:"league_id"`
	ListenAddr  string `yaml:"listen_addr"`
	DataDir     string `yaml:"data_dir"`
	MaxPlayers  int    `yaml:"max_players"`
	MaxReferees int    `yaml:"max_referees"`
	AutoAdvance bool   `yaml:"auto_advance"`

	BroadcastTimeoutSeconds int `yaml:"broadcast_timeout_seconds"`
	BroadcastMaxRetries     int `yaml:"broadcast_max_retries"`
	HealthIntervalSeconds   int `yaml:"health_interval_seconds"`
}

func (c League) BroadcastTimeout() time.Duration {
	return time.Duration(c.BroadcastTimeoutSeconds) * time.Second
}

func (c League) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSeconds) * time.Second
}

// DefaultLeague returns the league manager defaults.
func DefaultLeague() League {
	return League{
		LeagueID:                "L-25",
		ListenAddr:              ":8080",
		DataDir:                 "data",
		MaxPlayers:              100,
		MaxReferees:             10,
		AutoAdvance:             true,
		BroadcastTimeoutSeconds: 5,
		BroadcastMaxRetries:     2,
		HealthIntervalSeconds:   10,
	}
}

// Referee configures a referee service.
type Referee struct {
	ListenAddr  string `yaml:"listen_addr"`
	DisplayName string `yaml:"display_name"`
	Endpoint    string `yaml:"endpoint"`
	LeagueURL   string `yaml:"league_url"`

	InvitationTimeoutSeconds int `yaml:"invitation_timeout_seconds"`
	ChoiceTimeoutSeconds     int `yaml:"choice_timeout_seconds"`
	ReportTimeoutSeconds     int `yaml:"report_timeout_seconds"`
	ReportMaxRetries         int `yaml:"report_max_retries"`
}

func (c Referee) InvitationTimeout() time.Duration {
	return time.Duration(c.InvitationTimeoutSeconds) * time.Second
}

func (c Referee) ChoiceTimeout() time.Duration {
	return time.Duration(c.ChoiceTimeoutSeconds) * time.Second
}

func (c Referee) ReportTimeout() time.Duration {
	return time.Duration(c.ReportTimeoutSeconds) * time.Second
}

func DefaultReferee() Referee {
	return Referee{
		ListenAddr:               ":8081",
		DisplayName:              "referee",
		Endpoint:                 "http://localhost:8081",
		LeagueURL:                "http://localhost:8080",
		InvitationTimeoutSeconds: 5,
		ChoiceTimeoutSeconds:     30,
		ReportTimeoutSeconds:     5,
		ReportMaxRetries:         2,
	}
}

// Player configures a player service.
type Player struct {
	ListenAddr  string `yaml:"listen_addr"`
	DisplayName string `yaml:"display_name"`
	Endpoint    string `yaml:"endpoint"`
	LeagueURL   string `yaml:"league_url"`
	Strategy    string `yaml:"strategy"`
}

func DefaultPlayer() Player {
	return Player{
		ListenAddr:  ":8090",
		DisplayName: "player",
		Endpoint:    "http://localhost:8090",
		LeagueURL:   "http://localhost:8080",
		Strategy:    "random",
	}
}

// LoadLeague reads a league manager config, layering the file over defaults.
// An empty path returns the defaults unchanged.
func LoadLeague(path string) (League, error) {
	cfg := DefaultLeague()
	err := load(path, &cfg)
	return cfg, err
}

func LoadReferee(path string) (Referee, error) {
	cfg := DefaultReferee()
	err := load(path, &cfg)
	return cfg, err
}

func LoadPlayer(path string) (Player, error) {
	cfg := DefaultPlayer()
	err := load(path, &cfg)
	return cfg, err
}

func load(path string, out any) error {
	if path == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
