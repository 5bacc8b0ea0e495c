package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// defaultConfigPath is where the daemon looks for its configuration when no
// -config flag is given, relative to the invoking user's home directory.
const defaultConfigPath = ".config/smartdoor.toml"

// Config is the top-level structure loaded from smartdoor.toml.  It is read
// once at startup and treated as immutable afterwards; nothing in the daemon
// writes it back.
type Config struct {
	// AuthURL is the authentication endpoint of the remote host.
	AuthURL string `toml:"auth_url"`
	// Room identifies this door to the host; it is sent with every request.
	Room string `toml:"room"`

	Door   DoorConfig   `toml:"door"`
	Auth   AuthConfig   `toml:"auth"`
	Pins   PinConfig    `toml:"pins"`
	Notify NotifyConfig `toml:"notify"`
	Server ServerConfig `toml:"server"`

	// IFTTTURLs maps event names to webhook URLs.  Every resolved access
	// attempt is posted to all of them; the key is only a label.  The map
	// may hold any number of entries, including none.
	IFTTTURLs map[string]string `toml:"IFTTT_URLs"`

	// LogFile receives the operational event trail.
	LogFile string `toml:"log_file"`
}

// DoorConfig tunes the controller's behavior.
type DoorConfig struct {
	// DwellSeconds is how long the lock stays open after a grant.
	DwellSeconds int `toml:"dwell_seconds"`
	// FailThreshold is the number of consecutive host failures that
	// escalate the controller into the error state.
	FailThreshold int `toml:"fail_threshold"`
	// ButtonMode is "local" (button press unlocks without a network
	// round trip) or "remote" (press is forwarded to the host like a
	// card presentation, with identifier "button").
	ButtonMode string `toml:"button_mode"`
}

// AuthConfig tunes the authentication client.
type AuthConfig struct {
	// TimeoutSeconds bounds one round trip to the host.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// PinConfig assigns GPIO pins (BCM numbering).  NFCReset and NFCIRQ wire the
// MFRC522 reader; the reader itself sits on the first SPI port.
type PinConfig struct {
	Button    int `toml:"button"`
	LEDRed    int `toml:"led_red"`
	LEDGreen  int `toml:"led_green"`
	LEDButton int `toml:"led_button"`
	Buzzer    int `toml:"buzzer"`
	Servo     int `toml:"servo"`
	NFCReset  int `toml:"nfc_reset"`
	NFCIRQ    int `toml:"nfc_irq"`
}

// NotifyConfig tunes webhook and email delivery.
type NotifyConfig struct {
	TimeoutSeconds int         `toml:"timeout_seconds"`
	RatePerMinute  int         `toml:"rate_per_minute"`
	Email          EmailConfig `toml:"email"`
}

// EmailConfig configures the optional SMTP notifier.  Delivery is enabled
// when Server and To are both set.
type EmailConfig struct {
	SMTPServer string `toml:"smtp_server"`
	SMTPPort   int    `toml:"smtp_port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	From       string `toml:"from"`
	To         string `toml:"to"`
	Subject    string `toml:"subject"`
}

// ServerConfig configures the local status API.  Leaving Addr empty disables
// the server entirely.
type ServerConfig struct {
	Addr     string `toml:"addr"`
	Username string `toml:"username"`
	// PasswordHash is a bcrypt hash; generate one with -hash-password.
	PasswordHash string `toml:"password_hash"`
}

// LoadConfig reads and validates the TOML file at path.  Unrecognised keys
// are rejected rather than silently dropped, so a typo in a pin name fails
// loudly at startup instead of leaving an actuator dark.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		Door: DoorConfig{
			DwellSeconds:  3,
			FailThreshold: 3,
			ButtonMode:    "local",
		},
		Auth:   AuthConfig{TimeoutSeconds: 5},
		Notify: NotifyConfig{TimeoutSeconds: 8, RatePerMinute: 30},
		Server: ServerConfig{Username: "admin"},
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unrecognised config keys: %s", strings.Join(keys, ", "))
	}
	if cfg.LogFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("cannot determine home directory for log file: %w", err)
		}
		cfg.LogFile = filepath.Join(home, "smartdoor.log")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.AuthURL) == "" {
		return fmt.Errorf("auth_url is required")
	}
	if _, err := url.ParseRequestURI(c.AuthURL); err != nil {
		return fmt.Errorf("auth_url is not a valid URL: %w", err)
	}
	if strings.TrimSpace(c.Room) == "" {
		return fmt.Errorf("room is required")
	}
	if c.Door.DwellSeconds <= 0 {
		return fmt.Errorf("door.dwell_seconds must be positive")
	}
	if c.Door.FailThreshold <= 0 {
		return fmt.Errorf("door.fail_threshold must be positive")
	}
	switch c.Door.ButtonMode {
	case "local", "remote":
	default:
		return fmt.Errorf("door.button_mode must be %q or %q", "local", "remote")
	}
	if c.Auth.TimeoutSeconds <= 0 {
		return fmt.Errorf("auth.timeout_seconds must be positive")
	}
	if c.Notify.TimeoutSeconds <= 0 {
		return fmt.Errorf("notify.timeout_seconds must be positive")
	}
	if c.Notify.RatePerMinute <= 0 {
		return fmt.Errorf("notify.rate_per_minute must be positive")
	}
	for _, u := range c.IFTTTURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("IFTTT_URLs entry %q is not a valid URL: %w", u, err)
		}
	}
	if c.Server.Addr != "" && c.Server.PasswordHash == "" {
		return fmt.Errorf("server.password_hash is required when server.addr is set")
	}
	return c.Pins.validate()
}

// validate checks that every required pin is assigned and that no pin is
// assigned twice.  The original firmware shipped this check as a stub; a
// doubly assigned pin drives two actuators from one line, so it is a hard
// startup error here.
func (p PinConfig) validate() error {
	named := []struct {
		name string
		pin  int
	}{
		{"pins.button", p.Button},
		{"pins.led_red", p.LEDRed},
		{"pins.led_green", p.LEDGreen},
		{"pins.led_button", p.LEDButton},
		{"pins.buzzer", p.Buzzer},
		{"pins.servo", p.Servo},
		{"pins.nfc_reset", p.NFCReset},
		{"pins.nfc_irq", p.NFCIRQ},
	}
	seen := make(map[int]string, len(named))
	for _, n := range named {
		if n.pin <= 0 {
			return fmt.Errorf("%s must be a positive BCM pin number", n.name)
		}
		if prev, ok := seen[n.pin]; ok {
			return fmt.Errorf("%s and %s are both assigned pin %d", prev, n.name, n.pin)
		}
		seen[n.pin] = n.name
	}
	return nil
}
