package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"imucode-go/bus"
	mpu6886dev "imucode-go/services/hal/devices/mpu6886"
	"imucode-go/types"

	"gopkg.in/yaml.v3"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID
	CtxPathKey   = "path"   // context key for an on-disk YAML file
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// -----------------------------------------------------------------------------
// File format
// -----------------------------------------------------------------------------

// File is the YAML document shape.
type File struct {
	Devices []Device `yaml:"devices"`
	Pollers []Poller `yaml:"pollers"`
}

// Device params stay undecoded until the type is known.
type Device struct {
	ID     string    `yaml:"id"`
	Type   string    `yaml:"type"`
	Params yaml.Node `yaml:"params"`
}

type Poller struct {
	Domain     string `yaml:"domain"` // "" => inferred from kind
	Kind       string `yaml:"kind"`
	Name       string `yaml:"name"`
	Verb       string `yaml:"verb"` // "" => "read"
	IntervalMs uint32 `yaml:"interval_ms"`
	JitterMs   uint16 `yaml:"jitter_ms"`
}

// Parse decodes a YAML document into a HAL configuration.
func Parse(raw []byte) (types.HALConfig, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return types.HALConfig{}, fmt.Errorf("config: %w", err)
	}
	return f.HALConfig()
}

// Load reads and parses a YAML file.
func Load(path string) (types.HALConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.HALConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// HALConfig converts the file into typed device params.
func (f File) HALConfig() (types.HALConfig, error) {
	var cfg types.HALConfig
	seen := map[string]bool{}
	for _, d := range f.Devices {
		if d.ID == "" {
			return types.HALConfig{}, errors.New("config: device without id")
		}
		if seen[d.ID] {
			return types.HALConfig{}, fmt.Errorf("config: duplicate device id %q", d.ID)
		}
		seen[d.ID] = true

		params, err := decodeParams(d)
		if err != nil {
			return types.HALConfig{}, err
		}
		cfg.Devices = append(cfg.Devices, types.HALDevice{ID: d.ID, Type: d.Type, Params: params})
	}
	for i, p := range f.Pollers {
		if p.IntervalMs == 0 {
			return types.HALConfig{}, fmt.Errorf("config: poller %d: interval_ms must be > 0", i)
		}
		if p.Name == "" || p.Kind == "" {
			return types.HALConfig{}, fmt.Errorf("config: poller %d: kind and name are required", i)
		}
		cfg.Pollers = append(cfg.Pollers, types.PollSpec{
			Domain: p.Domain, Kind: types.Kind(p.Kind), Name: p.Name,
			Verb: p.Verb, IntervalMs: p.IntervalMs, JitterMs: p.JitterMs,
		})
	}
	return cfg, nil
}

func decodeParams(d Device) (any, error) {
	switch d.Type {
	case "mpu6886":
		var p mpu6886dev.Params
		if d.Params.Kind != 0 {
			if err := d.Params.Decode(&p); err != nil {
				return nil, fmt.Errorf("config: device %q: %w", d.ID, err)
			}
		}
		if p.Bus == "" {
			return nil, fmt.Errorf("config: device %q: bus is required", d.ID)
		}
		return p, nil
	}
	return nil, fmt.Errorf("config: device %q: unknown type %q", d.ID, d.Type)
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// Topic is where the HAL configuration is published (retained).
func Topic() bus.Topic { return bus.T(configPrefix, "hal") }

// Resolve picks the on-disk file when CtxPathKey is set, otherwise the
// embedded document for CtxDeviceKey.
func Resolve(ctx context.Context) (types.HALConfig, error) {
	if path, _ := ctx.Value(CtxPathKey).(string); path != "" {
		return Load(path)
	}
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return types.HALConfig{}, errors.New("missing device ID in context")
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return types.HALConfig{}, errors.New("no embedded config for device: " + device)
	}
	return Parse(raw)
}

// publishConfig resolves the configuration and publishes it retained.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	cfg, err := Resolve(ctx)
	if err != nil {
		return err
	}
	conn.Publish(conn.NewMessage(Topic(), cfg, true))
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("[config] publish failed:", err.Error())
		}
	}()
}
