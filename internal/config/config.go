// Package config decodes the on-disk settings and mapping preset files
// named in spec.md §6: a JSON `sc_settings.json` (the wire format the
// original firmware also used, kept for drop-in compatibility with
// existing SC1000 installs) and a set of YAML mapping presets layered
// on top of spec.md §3's default mapping table.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lodsb/scratchd/internal/mapping"
)

// AudioInterface mirrors one entry of the original firmware's
// audio_interface priority list (original_source
// software/src/core/sc_settings.h). Only the CV output reads this list:
// it uses the first entry with supports_cv set and a non-empty output
// map, and does not try later entries if that one fails to open. The
// main audio stream is opened from the CLI's device-index flags instead.
type AudioInterface struct {
	Name       string `json:"name"`
	Device     string `json:"device"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`

	PeriodSize         int  `json:"period_size"`
	BufferPeriodFactor int  `json:"buffer_period_factor"`
	SupportsCV         bool `json:"supports_cv"`

	InputChannels int `json:"input_channels"`
	InputLeft     int `json:"input_left"`
	InputRight    int `json:"input_right"`

	// OutputMap maps a hardware output channel index to a logical
	// output kind name (one of cv.LogicalOutputKind's string forms, or
	// "audio" for the main stereo mix); channels absent from the map
	// are unmapped.
	OutputMap map[int]string `json:"output_map,omitempty"`
}

// Settings is the full decoded sc_settings.json document. Field names
// and defaults are grounded directly on
// original_source/software/src/core/sc_settings.cpp's
// sc_settings_init_default and JSON-loading functions.
type Settings struct {
	PeriodSize         uint `json:"period_size"`
	BufferPeriodFactor uint `json:"buffer_period_factor"`
	SampleRate         int  `json:"sample_rate"`

	FaderOpenPoint  int `json:"fader_open_point"`
	FaderClosePoint int `json:"fader_close_point"`
	CutBeats        int `json:"cut_beats"`

	UpdateRateUs   int  `json:"update_rate"`
	PlatterEnabled bool `json:"platter_enabled"`
	PlatterSpeed   int  `json:"platter_speed"`

	DebounceTime int `json:"debounce_time"`
	HoldTime     int `json:"hold_time"`

	Slippiness int `json:"slippiness"`
	BrakeSpeed int `json:"brake_speed"`
	PitchRange int `json:"pitch_range"`

	MidiInitDelaySeconds  uint `json:"midi_init_delay"`
	AudioInitDelaySeconds uint `json:"audio_init_delay"`

	DisableVolumeADC  bool `json:"disable_volume_adc"`
	DisablePicButtons bool `json:"disable_pic_buttons"`

	VolumeAmount     float64 `json:"volume_amount"`
	VolumeAmountHeld float64 `json:"volume_amount_held"`
	InitialVolume    float64 `json:"initial_volume"`
	MaxVolume        float64 `json:"max_volume"`

	JogReverse bool `json:"jog_reverse"`

	Importer string `json:"importer"`

	AudioInterfaces []AudioInterface `json:"audio_interfaces,omitempty"`

	LoopMaxSeconds int `json:"loop_max_seconds"`

	CrossfaderADCMin int `json:"crossfader_adc_min"`
	CrossfaderADCMax int `json:"crossfader_adc_max"`

	RootPath string `json:"root_path"`
}

// Default returns the documented factory defaults
// (sc_settings_init_default), used whenever sc_settings.json is absent
// or a key is missing from it.
func Default() Settings {
	return Settings{
		PeriodSize:            256,
		BufferPeriodFactor:    4,
		SampleRate:            48000,
		FaderOpenPoint:        10,
		FaderClosePoint:       2,
		UpdateRateUs:          2000,
		PlatterEnabled:        true,
		PlatterSpeed:          2275,
		DebounceTime:          5,
		HoldTime:              100,
		Slippiness:            200,
		BrakeSpeed:            3000,
		PitchRange:            50,
		MidiInitDelaySeconds:  5,
		AudioInitDelaySeconds: 2,
		VolumeAmount:          0.03,
		VolumeAmountHeld:      0.001,
		InitialVolume:         0.125,
		MaxVolume:             1.0,
		Importer:              "/usr/bin/sc_importer",
		LoopMaxSeconds:        60,
		CrossfaderADCMin:      0,
		CrossfaderADCMax:      1023,
		RootPath:              "/media/sda",
	}
}

// Load decodes path as JSON over Default(), so any key the file omits
// keeps its default value and any key the file doesn't recognize is
// silently ignored (spec.md §6's additive-tolerance requirement; a JSON
// decoder that doesn't call DisallowUnknownFields already behaves this
// way).
func Load(path string) (Settings, error) {
	s := Default()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Save writes s to path as indented JSON.
func Save(path string, s Settings) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// MappingEntry is one human-editable YAML mapping preset row; Type,
// Edge and Action are spelled as names rather than the mapping
// package's integer enums, since these files are meant to be hand
// edited (spec.md §12).
type MappingEntry struct {
	Type string `yaml:"type"` // "gpio" or "midi"

	Port   int  `yaml:"port,omitempty"`
	Pin    int  `yaml:"pin,omitempty"`
	PullUp bool `yaml:"pullup,omitempty"`

	MidiStatus byte `yaml:"midi_status,omitempty"`
	MidiData1  byte `yaml:"midi_data1,omitempty"`
	MidiData2  byte `yaml:"midi_data2,omitempty"`

	Edge   string `yaml:"edge"`
	Deck   int    `yaml:"deck"`
	Action string `yaml:"action"`
	Param  int    `yaml:"param,omitempty"`
}

// MappingPreset is one named, loadable bundle of MappingEntry rows.
type MappingPreset struct {
	Name     string         `yaml:"name"`
	Mappings []MappingEntry `yaml:"mappings"`
}

// LoadMappingPreset decodes one YAML preset file. It does not check the
// entries' Type/Edge/Action names; Resolve converts them into the
// mapping package's enums.
func LoadMappingPreset(path string) (MappingPreset, error) {
	var preset MappingPreset
	b, err := os.ReadFile(path)
	if err != nil {
		return MappingPreset{}, err
	}
	if err := yaml.Unmarshal(b, &preset); err != nil {
		return MappingPreset{}, err
	}
	return preset, nil
}

// Resolve converts a preset's human-readable rows into mapping.Mapping
// values, returning an error naming the first unrecognized type/edge/
// action string (spec.md §3: unknown mapping entries must be rejected,
// not silently dropped, since a dropped control surface is invisible to
// the player).
func (p MappingPreset) Resolve() ([]mapping.Mapping, error) {
	out := make([]mapping.Mapping, 0, len(p.Mappings))
	for i, e := range p.Mappings {
		m, err := e.resolve()
		if err != nil {
			return nil, fmt.Errorf("mapping preset %q entry %d: %w", p.Name, i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (e MappingEntry) resolve() (mapping.Mapping, error) {
	var m mapping.Mapping

	switch e.Type {
	case "gpio":
		m.Type = mapping.SourceGPIO
	case "midi":
		m.Type = mapping.SourceMIDI
	default:
		return m, fmt.Errorf("unknown mapping type %q", e.Type)
	}

	edge, ok := edgeNames[e.Edge]
	if !ok {
		return m, fmt.Errorf("unknown edge %q", e.Edge)
	}
	action, ok := actionNames[e.Action]
	if !ok {
		return m, fmt.Errorf("unknown action %q", e.Action)
	}

	m.Port, m.Pin, m.PullUp = e.Port, e.Pin, e.PullUp
	m.MidiStatus, m.MidiData1, m.MidiData2 = e.MidiStatus, e.MidiData1, e.MidiData2
	m.Edge = edge
	m.Deck = e.Deck
	m.Action = action
	m.Param = e.Param
	return m, nil
}

var edgeNames = map[string]mapping.Edge{
	"pressed":          mapping.EdgePressed,
	"released":         mapping.EdgeReleased,
	"held":             mapping.EdgeHeld,
	"pressed_shifted":  mapping.EdgePressedShifted,
	"released_shifted": mapping.EdgeReleasedShifted,
	"held_shifted":     mapping.EdgeHeldShifted,
}

var actionNames = map[string]mapping.Action{
	"nothing":        mapping.ActionNothing,
	"cue":            mapping.ActionCue,
	"delete_cue":     mapping.ActionDeleteCue,
	"note":           mapping.ActionNote,
	"start_stop":     mapping.ActionStartStop,
	"shift_on":       mapping.ActionShiftOn,
	"shift_off":      mapping.ActionShiftOff,
	"next_file":      mapping.ActionNextFile,
	"prev_file":      mapping.ActionPrevFile,
	"random_file":    mapping.ActionRandomFile,
	"next_folder":    mapping.ActionNextFolder,
	"prev_folder":    mapping.ActionPrevFolder,
	"volume":         mapping.ActionVolume,
	"pitch":          mapping.ActionPitch,
	"jog_pitch":      mapping.ActionJogPit,
	"jog_pitch_stop": mapping.ActionJogPStop,
	"vol_up":         mapping.ActionVolUp,
	"vol_down":       mapping.ActionVolDown,
	"vol_up_hold":    mapping.ActionVolUHold,
	"vol_down_hold":  mapping.ActionVolDHold,
	"jog_reverse":    mapping.ActionJogReverse,
	"bend":           mapping.ActionBend,
	"record":         mapping.ActionRecord,
	"loop_erase":     mapping.ActionLoopErase,
	"loop_recall":    mapping.ActionLoopRecall,
	"sc500":          mapping.ActionSC500,
	"gnd":            mapping.ActionGnd,
}
