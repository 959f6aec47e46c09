// Package config loads daemon configuration from flags, environment and an
// optional config file. Env var overrides use prefix BLINKD_.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/blinkd/internal/blink"
	"github.com/sweeney/blinkd/internal/gpio"
)

// Keys, shared by flags, env vars (upper-cased, BLINKD_ prefix) and the config file.
const (
	KeyConfig        = "config"
	KeyChip          = "chip"
	KeyPrimaryPin    = "primary_pin"
	KeySecondaryPin  = "secondary_pin"
	KeyInputPin      = "input_pin"
	KeyTogglePeriod  = "toggle_period_seconds"
	KeyBroker        = "broker"
	KeyHTTP          = "http"
	KeyHeartbeat     = "heartbeat"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
	defaultHeartbeat = 15 * time.Minute
)

// ErrInvalid is returned for values the loader rejects outright.
var ErrInvalid = errors.New("invalid config value")

// Daemon holds the daemon configuration. Nil pins were not configured and
// take the blink defaults.
type Daemon struct {
	Chip                string
	PrimaryPin          *int
	SecondaryPin        *int
	InputPin            *int
	TogglePeriodSeconds int
	Broker              string
	HTTP                string
	Heartbeat           time.Duration
	LogLevel            logrus.Level
	LogFormat           string
}

// Flags registers every config flag on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String(KeyConfig, "", "config file (default /etc/blinkd/blinkd.yaml or ~/.config/blinkd/blinkd.yaml)")
	fs.String(KeyChip, gpio.DefaultChip, "GPIO chip name")
	fs.Int(KeyPrimaryPin, gpio.DefaultPinPrimary, "primary output pin")
	fs.Int(KeySecondaryPin, gpio.DefaultPinSecondary, "secondary output pin")
	fs.Int(KeyInputPin, gpio.DefaultPinInput, "input pin counted on rising edges")
	fs.Int(KeyTogglePeriod, 1, "seconds each level is held")
	fs.String(KeyBroker, "", "MQTT broker address (empty to disable)")
	fs.String(KeyHTTP, ":8080", "HTTP status address (empty to disable)")
	fs.Duration(KeyHeartbeat, defaultHeartbeat, "heartbeat interval (0 to disable)")
	fs.String(KeyLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, "text", "log format (text or json)")
}

// Load reads configuration. Precedence: flags, env, config file, defaults.
// A missing config file is not an error unless one was named explicitly.
func Load(fs *pflag.FlagSet) (Daemon, error) {
	v := viper.New()

	v.SetDefault(KeyChip, gpio.DefaultChip)
	v.SetDefault(KeyTogglePeriod, 1)
	v.SetDefault(KeyHTTP, ":8080")
	v.SetDefault(KeyHeartbeat, defaultHeartbeat)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	v.SetEnvPrefix("BLINKD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Daemon{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	cfgPath := v.GetString(KeyConfig)
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return Daemon{}, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
	} else {
		v.SetConfigName("blinkd")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/blinkd")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "blinkd"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Daemon{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	d := Daemon{
		Chip:                v.GetString(KeyChip),
		TogglePeriodSeconds: v.GetInt(KeyTogglePeriod),
		Broker:              v.GetString(KeyBroker),
		HTTP:                v.GetString(KeyHTTP),
		Heartbeat:           v.GetDuration(KeyHeartbeat),
		LogFormat:           v.GetString(KeyLogFormat),
	}

	var err error
	if d.PrimaryPin, err = optionalPin(v, KeyPrimaryPin); err != nil {
		return Daemon{}, err
	}
	if d.SecondaryPin, err = optionalPin(v, KeySecondaryPin); err != nil {
		return Daemon{}, err
	}
	if d.InputPin, err = optionalPin(v, KeyInputPin); err != nil {
		return Daemon{}, err
	}

	if d.TogglePeriodSeconds <= 0 {
		return Daemon{}, fmt.Errorf("%w: %s=%d must be positive", ErrInvalid, KeyTogglePeriod, d.TogglePeriodSeconds)
	}
	if d.Heartbeat < 0 {
		return Daemon{}, fmt.Errorf("%w: %s=%v must not be negative", ErrInvalid, KeyHeartbeat, d.Heartbeat)
	}
	if d.LogLevel, err = logrus.ParseLevel(v.GetString(KeyLogLevel)); err != nil {
		return Daemon{}, fmt.Errorf("%w: %s: %v", ErrInvalid, KeyLogLevel, err)
	}
	if d.LogFormat != "text" && d.LogFormat != "json" {
		return Daemon{}, fmt.Errorf("%w: %s=%q", ErrInvalid, KeyLogFormat, d.LogFormat)
	}
	return d, nil
}

// Blink converts the pin and period settings for the blink module.
// Pin collisions are left for blink.Config.Normalize to report.
func (d Daemon) Blink() blink.Config {
	return blink.Config{
		PrimaryPin:   pinID(d.PrimaryPin),
		SecondaryPin: pinID(d.SecondaryPin),
		InputPin:     pinID(d.InputPin),
		TogglePeriod: time.Duration(d.TogglePeriodSeconds) * time.Second,
	}
}

// Logger builds the daemon logger from the level and format settings.
func (d Daemon) Logger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(d.LogLevel)
	if d.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// optionalPin returns nil when key was not set anywhere, so the blink
// default applies to that pin alone.
func optionalPin(v *viper.Viper, key string) (*int, error) {
	if !v.IsSet(key) {
		return nil, nil
	}
	p := v.GetInt(key)
	if p < 0 {
		return nil, fmt.Errorf("%w: %s=%d must not be negative", ErrInvalid, key, p)
	}
	return &p, nil
}

func pinID(p *int) *blink.PinID {
	if p == nil {
		return nil
	}
	return blink.Pin(blink.PinID(*p))
}
