package prowl

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Duration carries time.Duration through YAML in "5m" notation.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", s)
	}
	d.Duration = parsed
	return nil
}

// Per-adapter enablement and intensity.
type AdapterSettings struct {
	Enabled bool  `yaml:"enabled"`
	Level   Level `yaml:"level"`
}

// Report rendering settings. The pipeline itself only forwards these
// to whichever renderers are active.
type ReportSettings struct {
	Formats      []string `yaml:"formats"`
	Theme        string   `yaml:"theme"`
	OutputDir    string   `yaml:"output_dir"`
	ClearReports bool     `yaml:"clear_reports"`
}

// The resolved configuration a run consumes. Loaded once and passed
// in explicitly; nothing reads configuration ad hoc.
type Settings struct {
	TargetIP     string `yaml:"target_ip"`
	TargetDomain string `yaml:"target_domain"`

	Adapters map[string]AdapterSettings `yaml:"adapters"`

	// purge prior findings for the target before writing new ones
	PurgeOnStart bool `yaml:"purge_on_start"`

	// per-scan timeout; one invocation per (adapter, kind) pair
	ScanTimeout Duration `yaml:"scan_timeout"`

	// where raw artifacts are written during a run
	Workdir string `yaml:"workdir"`
	// where the finding database lives; "-" keeps it in memory
	Home string `yaml:"home"`

	Report ReportSettings `yaml:"report"`
}

func (s *Settings) Target() Target {
	return Target{IP: s.TargetIP, Domain: s.TargetDomain}
}

// Returns the {adapter: level} mapping of enabled adapters.
func (s *Settings) EnabledAdapters() map[string]Level {
	out := make(map[string]Level)
	for name, a := range s.Adapters {
		if !a.Enabled {
			continue
		}
		level := a.Level
		if level == "" {
			level = LevelEasy
		}
		out[name] = level
	}
	return out
}

func defaultSettings() *Settings {
	return &Settings{
		ScanTimeout: Duration{15 * time.Minute},
		Workdir:     os.TempDir(),
		Home:        ".",
		Report: ReportSettings{
			Formats:   []string{"terminal"},
			Theme:     "light",
			OutputDir: "reports",
		},
	}
}

// Loads settings from a YAML file on top of the defaults and
// validates them.
func LoadSettings(fpath string) (*Settings, error) {
	settings := defaultSettings()

	b, err := os.ReadFile(fpath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read settings file")
	}
	if err := yaml.Unmarshal(b, settings); err != nil {
		return nil, errors.Wrap(err, "failed to parse settings file")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Settings) Validate() error {
	if s.Target().Empty() {
		return errors.New("neither target_ip nor target_domain is set")
	}
	if s.ScanTimeout.Duration <= 0 {
		return errors.New("scan_timeout must be positive")
	}
	for name, a := range s.Adapters {
		switch a.Level {
		case "", LevelEasy, LevelMiddle, LevelHard, LevelExtreme:
		default:
			return errors.Errorf("unknown level %q for adapter %s", a.Level, name)
		}
	}
	return nil
}
