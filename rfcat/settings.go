package rfcat

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Settings is the listening/jamming/sending profile programmed into a dongle.
type Settings struct {
	Frequency        uint32 `yaml:"frequency"`
	BaudRate         int    `yaml:"baudRate"`
	ChannelBandwidth int    `yaml:"channelBandwidth"`
	ChannelSpacing   int    `yaml:"channelSpacing"`
	Modulation       string `yaml:"modulation"`
	UpperRSSI        int    `yaml:"upperRssi"`
	LowerRSSI        int    `yaml:"lowerRssi"`
}

func DefaultSettings() Settings {
	return Settings{
		Frequency:        315000000,
		BaudRate:         4800,
		ChannelBandwidth: 60000,
		ChannelSpacing:   24000,
		Modulation:       ModASKOOK.String(),
		UpperRSSI:        -100,
		LowerRSSI:        -20,
	}
}

// SaveTemplate writes the settings to path so a tuned device profile can be
// reloaded across sessions.
func (s Settings) SaveTemplate(path string) error {
	out, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

func LoadTemplate(path string) (Settings, error) {
	s := DefaultSettings()
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parsing settings template %s: %w", path, err)
	}
	if _, err := ParseModulation(s.Modulation); err != nil {
		return s, fmt.Errorf("settings template %s: %w", path, err)
	}
	return s, nil
}
