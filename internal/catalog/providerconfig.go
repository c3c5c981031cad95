package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Mode selects how a container consults its providers.
type Mode string

const (
	// ModeFallback tries providers in priority order and stops at the first hit.
	ModeFallback Mode = "fallback"
	// ModeMerge queries every provider concurrently and merges the hits.
	ModeMerge Mode = "merge"
)

// ParseMode maps a loose string to a Mode. Empty means fallback.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFallback:
		return ModeFallback, nil
	case ModeMerge:
		return ModeMerge, nil
	default:
		return "", fmt.Errorf("unknown lookup mode %q", s)
	}
}

// ProviderConfig is the declarative provider routing file.
type ProviderConfig struct {
	Containers map[string]ContainerConfig `yaml:"containers" validate:"required,dive,keys,required,endkeys"`
}

// ContainerConfig routes one media-type container.
type ContainerConfig struct {
	Mode Mode        `yaml:"mode" validate:"omitempty,oneof=fallback merge"`
	APIs []APIConfig `yaml:"apis" validate:"dive"`
}

// APIConfig is one provider entry of a container.
type APIConfig struct {
	Name          string `yaml:"name" json:"name" validate:"required"`
	Priority      int    `yaml:"priority" json:"priority" validate:"gte=0"`
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	EnvDisableKey string `yaml:"envDisableKey,omitempty" json:"envDisableKey,omitempty"`
}

// UnmarshalYAML defaults Enabled to true when the key is omitted.
func (a *APIConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain APIConfig
	raw := plain{Enabled: true}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*a = APIConfig(raw)
	return nil
}

// DisableKey returns the env flag that force-disables this API.
func (a APIConfig) DisableKey() string {
	if a.EnvDisableKey != "" {
		return a.EnvDisableKey
	}
	return DefaultDisableKey(a.Name)
}

// DefaultDisableKey derives DISABLE_<NAME> from a provider name.
func DefaultDisableKey(name string) string {
	upper := strings.ToUpper(name)
	var b strings.Builder
	b.WriteString("DISABLE_")
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the config structure, that every container key is a known
// container or alias naming a distinct container, and that API names are
// unique per container.
func (c *ProviderConfig) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid provider config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid provider config: %w", err)
	}
	resolved := make(map[string]string, len(c.Containers))
	for key, container := range c.Containers {
		canonical, ok := ResolveContainer(key)
		if !ok {
			return fmt.Errorf("invalid provider config: unknown container %q", key)
		}
		if other, dup := resolved[canonical]; dup {
			return fmt.Errorf("invalid provider config: containers %q and %q both configure %q", other, key, canonical)
		}
		resolved[canonical] = key

		seen := make(map[string]bool, len(container.APIs))
		for _, api := range container.APIs {
			if seen[api.Name] {
				return fmt.Errorf("invalid provider config: container %q lists %q twice", key, api.Name)
			}
			seen[api.Name] = true
		}
	}
	return nil
}

// ParseProviderConfig decodes and validates a YAML provider config.
func ParseProviderConfig(data []byte) (*ProviderConfig, error) {
	var cfg ProviderConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse provider config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigSource supplies the provider config. It is read at startup and on
// every reload.
type ConfigSource interface {
	Load(ctx context.Context) (*ProviderConfig, error)
}

// FileSource reads the provider config from a YAML file.
type FileSource struct {
	Path string
}

// Load reads and validates the file.
func (s FileSource) Load(_ context.Context) (*ProviderConfig, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider config %s: %w", s.Path, err)
	}
	return ParseProviderConfig(data)
}

// StaticSource serves an in-memory config.
type StaticSource struct {
	Config *ProviderConfig
}

// Load returns the static config after validating it.
func (s StaticSource) Load(_ context.Context) (*ProviderConfig, error) {
	if s.Config == nil {
		return nil, errors.New("static provider config is nil")
	}
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	return s.Config, nil
}

// snapshot is the immutable, pre-sorted form of a ProviderConfig that
// lookups read. It is replaced wholesale on reload.
type snapshot struct {
	containers map[string]containerSnapshot
}

type containerSnapshot struct {
	mode Mode
	apis []APIConfig
}

func newSnapshot(cfg *ProviderConfig) *snapshot {
	s := &snapshot{containers: make(map[string]containerSnapshot, len(cfg.Containers))}
	for key, c := range cfg.Containers {
		mode := c.Mode
		if mode == "" {
			mode = ModeFallback
		}
		apis := append([]APIConfig(nil), c.APIs...)
		sort.SliceStable(apis, func(i, j int) bool {
			return apis[i].Priority < apis[j].Priority
		})
		container, ok := ResolveContainer(key)
		if !ok {
			continue
		}
		s.containers[container] = containerSnapshot{mode: mode, apis: apis}
	}
	return s
}

// isTruthy reports the values that switch an env flag on.
func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
