// Package config handles the persisted softbright settings using Viper
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Setting keys
const (
	KeyUseBacklight      = "use-backlight"
	KeyCurrentBrightness = "current-brightness"
	KeyMinBrightness     = "min-brightness"
	KeyMonitors          = "monitors"
	KeyBuiltinMonitor    = "builtin-monitor"
	KeyPreventUnredirect = "prevent-unredirect"
	KeyCloneMouse        = "clone-mouse"
	KeyDebug             = "debug"
)

var (
	// ErrUnknownKey is returned for keys outside the schema.
	ErrUnknownKey = errors.New("unknown setting")
	// ErrInvalidValue is returned when a value does not fit the key's type or range.
	ErrInvalidValue = errors.New("invalid setting value")
)

// Kind is the value type of a setting.
type Kind int

const (
	KindBool Kind = iota
	KindDouble
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindDouble:
		return "double"
	default:
		return "string"
	}
}

// Field describes one key of the schema.
type Field struct {
	Key     string
	Kind    Kind
	Default any
	Choices []string // allowed values for enum-like strings
	Summary string
}

// Schema lists every persisted setting with its default.
var Schema = []Field{
	{Key: KeyUseBacklight, Kind: KindBool, Default: false,
		Summary: "Use the hardware backlight as the brightness store"},
	{Key: KeyCurrentBrightness, Kind: KindDouble, Default: 1.0,
		Summary: "Software dimming brightness"},
	{Key: KeyMinBrightness, Kind: KindDouble, Default: 0.1,
		Summary: "Minimum brightness"},
	{Key: KeyMonitors, Kind: KindString, Default: string(MonitorsAll),
		Choices: []string{string(MonitorsAll), string(MonitorsBuiltin), string(MonitorsExternal)},
		Summary: "Monitors to dim"},
	{Key: KeyBuiltinMonitor, Kind: KindString, Default: "",
		Summary: "Name of the built-in monitor"},
	{Key: KeyPreventUnredirect, Kind: KindString, Default: string(UnredirectWhenCorrecting),
		Choices: []string{string(UnredirectAlways), string(UnredirectWhenCorrecting), string(UnredirectNever)},
		Summary: "When to prevent full-screen unredirection"},
	{Key: KeyCloneMouse, Kind: KindBool, Default: true,
		Summary: "Draw a cursor clone above the dimming overlay"},
	{Key: KeyDebug, Kind: KindBool, Default: false,
		Summary: "Verbose logging"},
}

// Lookup returns the schema entry for key.
func Lookup(key string) (Field, bool) {
	for _, f := range Schema {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// MonitorPolicy selects which monitors get an overlay.
type MonitorPolicy string

const (
	MonitorsAll      MonitorPolicy = "all"
	MonitorsBuiltin  MonitorPolicy = "built-in"
	MonitorsExternal MonitorPolicy = "external"
)

// ParseMonitorPolicy validates a persisted "monitors" value.
func ParseMonitorPolicy(s string) (MonitorPolicy, error) {
	switch p := MonitorPolicy(s); p {
	case MonitorsAll, MonitorsBuiltin, MonitorsExternal:
		return p, nil
	}
	return "", fmt.Errorf("%w: monitors=%q", ErrInvalidValue, s)
}

// UnredirectPolicy controls when full-screen unredirection is disabled.
type UnredirectPolicy string

const (
	UnredirectAlways         UnredirectPolicy = "always"
	UnredirectWhenCorrecting UnredirectPolicy = "when-correcting"
	UnredirectNever          UnredirectPolicy = "never"
)

// ParseUnredirectPolicy validates a persisted "prevent-unredirect" value.
func ParseUnredirectPolicy(s string) (UnredirectPolicy, error) {
	switch p := UnredirectPolicy(s); p {
	case UnredirectAlways, UnredirectWhenCorrecting, UnredirectNever:
		return p, nil
	}
	return "", fmt.Errorf("%w: prevent-unredirect=%q", ErrInvalidValue, s)
}

// ParseValue converts text (from the command line) to the key's typed value.
func ParseValue(key, text string) (any, error) {
	f, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	switch f.Kind {
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidValue, key, text)
		}
		return b, nil
	case KindDouble:
		d, err := strconv.ParseFloat(text, 64)
		if err != nil || !finite(d) || d < 0 || d > 1 {
			return nil, fmt.Errorf("%w: %s=%q must be a number in [0,1]", ErrInvalidValue, key, text)
		}
		return d, nil
	default:
		if len(f.Choices) > 0 {
			for _, c := range f.Choices {
				if c == text {
					return text, nil
				}
			}
			return nil, fmt.Errorf("%w: %s=%q, expected one of %s", ErrInvalidValue, key, text, strings.Join(f.Choices, ", "))
		}
		return text, nil
	}
}

func finite(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0)
}

// Override config path if set
var configPathOverride string

// SetConfigPath allows overriding the config path
func SetConfigPath(path string) {
	configPathOverride = path
}

// GetConfigPath returns the path to the settings file
func GetConfigPath() string {
	if configPathOverride != "" {
		return configPathOverride
	}

	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "softbright", "softbright.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "softbright.toml")
	}
	return filepath.Join(home, ".config", "softbright", "softbright.toml")
}

// newViper builds a Viper instance bound to path with every default registered.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	for _, f := range Schema {
		v.SetDefault(f.Key, f.Default)
	}
	return v
}

// readConfig loads path into v, treating a missing file as "use defaults".
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// writeConfig persists v to its file, creating the directory when needed.
func writeConfig(v *viper.Viper, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Snapshot is a one-shot typed view of the settings file, for CLI commands
// that do not run the event loop.
type Snapshot map[string]any

// Load reads the settings file once.
func Load() (Snapshot, error) {
	path := GetConfigPath()
	v := newViper(path)
	if err := readConfig(v); err != nil {
		return nil, err
	}
	return snapshot(v), nil
}

// SaveValues writes values (already typed) into the settings file, keeping
// any other keys it holds.
func SaveValues(values map[string]any) error {
	path := GetConfigPath()
	v := newViper(path)
	if err := readConfig(v); err != nil {
		return err
	}
	for key, value := range values {
		if _, ok := Lookup(key); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownKey, key)
		}
		v.Set(key, value)
	}
	return writeConfig(v, path)
}

func snapshot(v *viper.Viper) Snapshot {
	s := make(Snapshot, len(Schema))
	for _, f := range Schema {
		switch f.Kind {
		case KindBool:
			s[f.Key] = v.GetBool(f.Key)
		case KindDouble:
			s[f.Key] = v.GetFloat64(f.Key)
		default:
			s[f.Key] = v.GetString(f.Key)
		}
	}
	return s
}

// Bool returns a boolean value from the snapshot.
func (s Snapshot) Bool(key string) bool {
	b, _ := s[key].(bool)
	return b
}

// Double returns a floating point value from the snapshot.
func (s Snapshot) Double(key string) float64 {
	d, _ := s[key].(float64)
	return d
}

// String returns a string value from the snapshot.
func (s Snapshot) String(key string) string {
	str, _ := s[key].(string)
	return str
}
