// Package app holds the on-disk configuration of rtcbackend.
package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v2"

	"github.com/rtctunnel/rtcbackend/internal/backend"
	"github.com/rtctunnel/rtcbackend/internal/crypt"
)

// Engine names.
const (
	EnginePion = "pion"
	EngineFake = "fake"
)

const (
	DefaultSignalChannel = "operator://operator.rtctunnel.com"
	DefaultLabel         = "rtcbackend"
)

// An ICEServer is a STUN or TURN server.
type ICEServer struct {
	URLs       []string `json:"urls" yaml:"urls"`
	Username   string   `json:"username,omitempty" yaml:"username,omitempty"`
	Credential string   `json:"credential,omitempty" yaml:"credential,omitempty"`
}

// Pion holds the network knobs of the pion engine.
type Pion struct {
	LoopbackCandidates bool   `json:"loopbackcandidates,omitempty" yaml:"loopbackcandidates,omitempty"`
	MulticastDNS       bool   `json:"multicastdns,omitempty" yaml:"multicastdns,omitempty"`
	UDPPortMin         uint16 `json:"udpportmin,omitempty" yaml:"udpportmin,omitempty"`
	UDPPortMax         uint16 `json:"udpportmax,omitempty" yaml:"udpportmax,omitempty"`
}

// A Config is the configuration for rtcbackend.
type Config struct {
	KeyPair       crypt.KeyPair `json:"keypair" yaml:"keypair"`
	SignalChannel string        `json:"signalchannel,omitempty" yaml:"signalchannel,omitempty"`
	ICEServers    []ICEServer   `json:"iceservers,omitempty" yaml:"iceservers,omitempty"`
	DefaultLabel  string        `json:"defaultlabel,omitempty" yaml:"defaultlabel,omitempty"`
	Engine        string        `json:"engine,omitempty" yaml:"engine,omitempty"`
	Pion          Pion          `json:"pion,omitempty" yaml:"pion,omitempty"`
}

// LoadConfig loads the config off of the disk.
func LoadConfig(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(bs, &cfg)
	default:
		err = yaml.Unmarshal(bs, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, cfg.Validate()
}

// Validate checks the settings that have no usable default.
func (cfg *Config) Validate() error {
	switch cfg.Engine {
	case "", EnginePion, EngineFake:
	default:
		return fmt.Errorf("unknown engine %q", cfg.Engine)
	}
	if cfg.Pion.UDPPortMin > cfg.Pion.UDPPortMax {
		return fmt.Errorf("invalid udp port range %d-%d", cfg.Pion.UDPPortMin, cfg.Pion.UDPPortMax)
	}
	return nil
}

// Label returns the data channel label to use when none is given.
func (cfg *Config) Label() string {
	if cfg.DefaultLabel == "" {
		return DefaultLabel
	}
	return cfg.DefaultLabel
}

// Channel returns the signal channel URL.
func (cfg *Config) Channel() string {
	if cfg.SignalChannel == "" {
		return DefaultSignalChannel
	}
	return cfg.SignalChannel
}

// EngineName returns the configured engine, pion by default.
func (cfg *Config) EngineName() string {
	if cfg.Engine == "" {
		return EnginePion
	}
	return cfg.Engine
}

// Configuration returns the session configuration.
func (cfg *Config) Configuration() backend.Configuration {
	var out backend.Configuration
	for _, server := range cfg.ICEServers {
		out.ICEServers = append(out.ICEServers, backend.ICEServer{
			URLs:       append([]string(nil), server.URLs...),
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return out
}

// Save saves the config file.
func (cfg *Config) Save(path string) error {
	var bs []byte
	var err error
	switch filepath.Ext(path) {
	case ".json":
		bs, err = json.MarshalIndent(cfg, "", "  ")
	default:
		bs, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, bs, 0600)
}
