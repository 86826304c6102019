// Package main is the scratchd CLI entrypoint: it parses flags, loads
// sc_settings.json and a mapping preset, wires every port
// implementation (audio, platform GPIO/I2C, MIDI) to the engine and
// input reducer, and runs the Rig's main loop until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"github.com/charmbracelet/log"

	"github.com/lodsb/scratchd/internal/announce"
	"github.com/lodsb/scratchd/internal/audiohw"
	"github.com/lodsb/scratchd/internal/config"
	"github.com/lodsb/scratchd/internal/cv"
	"github.com/lodsb/scratchd/internal/deck"
	"github.com/lodsb/scratchd/internal/engine"
	"github.com/lodsb/scratchd/internal/input"
	"github.com/lodsb/scratchd/internal/interp"
	"github.com/lodsb/scratchd/internal/logging"
	"github.com/lodsb/scratchd/internal/mapping"
	"github.com/lodsb/scratchd/internal/midihw"
	"github.com/lodsb/scratchd/internal/platforminputs"
	"github.com/lodsb/scratchd/internal/playlist"
	"github.com/lodsb/scratchd/internal/rig"
	"github.com/lodsb/scratchd/internal/statslog"
)

func main() {
	var (
		root           = pflag.String("root", "", "Root directory of the sample library (overrides sc_settings.json's root_path).")
		settingsPath   = pflag.String("settings", "sc_settings.json", "Path to the sc_settings.json configuration file.")
		presetPath     = pflag.String("preset", "configs/default-mapping.yaml", "Path to a YAML mapping preset.")
		logConsole     = pflag.Bool("log-console", true, "Log to stderr.")
		logFile        = pflag.Bool("log-file", false, "Log to a file, in addition to/instead of the console.")
		logFilePath    = pflag.String("log-file-path", "scratchd.log", "Path for --log-file's output.")
		logLevel       = pflag.String("log-level", "info", "Log level: debug, info, warn, error.")
		useCubic       = pflag.Bool("cubic", false, "Use cubic Hermite interpolation instead of windowed-sinc.")
		useSinc        = pflag.Bool("sinc", true, "Use windowed-sinc interpolation (default).")
		showStats      = pflag.Bool("show-stats", false, "Write a rotated DSP-stats CSV log.")
		statsDir       = pflag.String("stats-dir", "stats", "Directory for --show-stats's rotated log files.")
		announcePort   = pflag.Int("announce-port", 0, "Advertise a remote-control TCP port over mDNS. 0 disables.")
		inputDeviceID  = pflag.Int("audio-input-device", -1, "PortAudio input device index. -1 selects the system default.")
		outputDeviceID = pflag.Int("audio-output-device", -1, "PortAudio output device index. -1 selects the system default.")
		help           = pflag.BoolP("help", "h", false, "Display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - a digital scratch-turntable engine for the SC1000 rig.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: scratchd [options]\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	logOpts := logging.Options{Console: *logConsole, Level: *logLevel}
	if *logFile {
		logOpts.FilePath = *logFilePath
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scratchd: logger: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.Load(*settingsPath)
	if err != nil {
		logger.Error("failed to load settings, aborting", "path", *settingsPath, "err", err)
		os.Exit(1)
	}
	if *root != "" {
		settings.RootPath = *root
	}

	pl, err := playlist.Load(settings.RootPath)
	if err != nil {
		logger.Error("failed to walk sample library, aborting", "root", settings.RootPath, "err", err)
		os.Exit(1)
	}

	decks := [2]*deck.Deck{deck.NewDeck(0, pl), deck.NewDeck(1, pl)}

	var kernel interp.Kernel = interp.NewSinc()
	if *useCubic {
		kernel = interp.Cubic{}
	}
	_ = useSinc // --sinc is the default; present only so both flags appear in --help

	engSettings := engine.DefaultSettings()
	engSettings.SampleRate = uint32(settings.SampleRate)
	engSettings.BrakeSpeed = float64(settings.BrakeSpeed)
	engSettings.Slippiness = float64(settings.Slippiness)
	engSettings.MaxVolume = settings.MaxVolume
	engSettings.LoopMaxSeconds = float64(settings.LoopMaxSeconds)

	eng := engine.New(engSettings, kernel, engine.FormatS16, decks)

	hwCfg := audiohw.DefaultConfig()
	hwCfg.SampleRate = float64(settings.SampleRate)
	hwCfg.FramesPerBuffer = int(settings.PeriodSize)
	hwCfg.InputDeviceID = *inputDeviceID
	hwCfg.OutputDeviceID = *outputDeviceID
	hw, err := audiohw.Open(hwCfg, eng)
	if err != nil {
		logger.Error("failed to open audio hardware, aborting", "err", err)
		os.Exit(1)
	}

	registry, dispatcher := mustLoadMappings(logger, *presetPath, decks, eng, settings)

	midiQueue := input.NewMidiQueue()
	midiDevices := openMidiDevices(logger, midiQueue, dispatcher.Shifted)

	platformHW, err := platforminputs.Open(platformConfig(registry), nil)
	if err != nil {
		logger.Warn("platform input hardware unavailable, continuing with neutral defaults", "err", err)
	}

	reducer := input.New(registry, dispatcher, decks, platformInputsOrNil(platformHW), midiQueue, eng, input.Settings{
		DebounceTime:      settings.DebounceTime,
		HoldTime:          settings.HoldTime,
		FaderOpenPoint:    uint16(settings.FaderOpenPoint),
		FaderClosePoint:   uint16(settings.FaderClosePoint),
		CutBeats:          settings.CutBeats,
		PlatterEnabled:    settings.PlatterEnabled,
		PlatterSpeed:      float64(settings.PlatterSpeed),
		JogReverse:        settings.JogReverse,
		DisableVolumeADC:  settings.DisableVolumeADC,
		DisablePicButtons: settings.DisablePicButtons,
	}, logger)

	stopInput := make(chan struct{})
	go reducer.Run(stopInput)

	var announcer *announce.Announcer
	if *announcePort > 0 {
		announcer, err = announce.Start("", *announcePort)
		if err != nil {
			logger.Warn("mDNS announce failed, continuing without it", "err", err)
		}
	}

	stopStats := make(chan struct{})
	var statsWriter *statslog.Writer
	if *showStats {
		statsWriter, err = statslog.Open(*statsDir, "")
		if err != nil {
			logger.Warn("stats log unavailable, continuing without it", "err", err)
			statsWriter = nil
		} else {
			go runStatsLoop(eng, statsWriter, stopStats)
		}
	}

	cvOut := openCVOutput(logger, settings, eng, decks[input.ScratchDeckIndex])
	if cvOut != nil {
		defer cvOut.Close()
	}

	r, err := rig.New(eng, hw, decks, logger)
	if err != nil {
		logger.Error("failed to construct rig, aborting", "err", err)
		os.Exit(1)
	}

	if err := hw.Start(); err != nil {
		logger.Error("failed to start audio hardware, aborting", "err", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown requested")
		r.Quit()
	}()

	logger.Info("scratchd running", "root", settings.RootPath, "sample_rate", settings.SampleRate)
	if err := r.Run(); err != nil {
		logger.Error("rig main loop exited with error", "err", err)
	}

	close(stopInput)
	close(stopStats)
	_ = hw.Stop()
	_ = r.Close()
	for _, d := range midiDevices {
		_ = d.Close()
	}
	if announcer != nil {
		announcer.Stop()
	}
	if statsWriter != nil {
		_ = statsWriter.Close()
	}
}

// mustLoadMappings resolves the configured preset into a Registry and
// builds the Dispatcher that routes matched mappings to the two decks.
// A preset that fails to load or resolve is fatal: a silently empty
// control surface would leave the rig unusable without ever saying why.
func mustLoadMappings(logger *log.Logger, presetPath string, decks [2]*deck.Deck, eng *engine.AudioEngine, settings config.Settings) (*mapping.Registry, *mapping.Dispatcher) {
	preset, err := config.LoadMappingPreset(presetPath)
	if err != nil {
		logger.Error("failed to load mapping preset, aborting", "path", presetPath, "err", err)
		os.Exit(1)
	}
	mappings, err := preset.Resolve()
	if err != nil {
		logger.Error("failed to resolve mapping preset, aborting", "path", presetPath, "err", err)
		os.Exit(1)
	}
	registry := mapping.NewRegistry(mappings)
	dispatcher := &mapping.Dispatcher{
		Decks: mapping.Decks{decks[0], decks[1]},
		Settings: mapping.Settings{
			PitchRange:       settings.PitchRange,
			VolumeAmount:     settings.VolumeAmount,
			VolumeAmountHeld: settings.VolumeAmountHeld,
		},
		Engine: eng,
	}
	return registry, dispatcher
}

// platformConfig derives the platforminputs.Config GPIO line map from
// every non-expander (port > 0) GPIO mapping the registry holds; the
// SoC GPIO offset for a given (port, pin) pair is the pin number
// itself, matching how the original firmware's device-tree overlay
// numbers these lines.
func platformConfig(registry *mapping.Registry) platforminputs.Config {
	lines := make(map[[2]int]int)
	for _, m := range registry.Mappings() {
		if m.Type == mapping.SourceGPIO && m.Port > 0 {
			lines[[2]int{m.Port, m.Pin}] = m.Pin
		}
	}
	return platforminputs.Config{
		GPIOChip:     "gpiochip0",
		ExpanderBus:  "/dev/i2c-1",
		ExpanderAddr: 0x20,
		PicBus:       "/dev/i2c-1",
		PicAddr:      0x08,
		GPIOLines:    lines,
	}
}

func platformInputsOrNil(h *platforminputs.Hardware) input.PlatformInputs {
	if h == nil {
		return nil
	}
	return h
}

func openMidiDevices(logger *log.Logger, queue *input.MidiQueue, shift midihw.ShiftQuery) []*midihw.Device {
	paths, err := midihw.Discover()
	if err != nil {
		logger.Warn("MIDI device discovery failed, continuing without MIDI", "err", err)
		return nil
	}
	var devices []*midihw.Device
	for _, p := range paths {
		d, err := midihw.Open(p, queue, shift)
		if err != nil {
			logger.Warn("failed to open MIDI device, skipping", "path", p, "err", err)
			continue
		}
		logger.Info("opened MIDI device", "path", p)
		devices = append(devices, d)
	}
	return devices
}

func runStatsLoop(eng *engine.AudioEngine, w *statslog.Writer, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			_ = w.Write(now, eng.Stats())
		}
	}
}

// cvOutput owns a dedicated multichannel PortAudio output-only stream
// driving a cv.Processor from one deck's state each block. It exists
// because internal/audiohw's duplex stream is fixed at two channels
// (the main stereo mix); a CV-capable audio interface needs its own,
// wider stream instead.
type cvOutput struct {
	stream *portaudio.Stream
}

func (c *cvOutput) Close() error {
	if c == nil || c.stream == nil {
		return nil
	}
	_ = c.stream.Stop()
	return c.stream.Close()
}

var cvKindNames = map[string]cv.LogicalOutputKind{
	"audio":           cv.OutputAudio,
	"platter_speed":   cv.OutputPlatterSpeed,
	"sample_position": cv.OutputSamplePosition,
	"crossfader":      cv.OutputCrossfader,
	"gate_a":          cv.OutputGateA,
	"gate_b":          cv.OutputGateB,
	"platter_angle":   cv.OutputPlatterAngle,
	"platter_accel":   cv.OutputPlatterAccel,
	"direction_pulse": cv.OutputDirectionPulse,
}

// openCVOutput opens a dedicated multichannel PortAudio output stream
// for the first configured audio_interfaces entry that declares
// supports_cv, driving a cv.Processor from scratchDeck's state each
// block. Returns nil when no interface declares CV support or the
// device fails to open; either way the rig keeps running with no CV
// output, matching spec.md §7's hardware-absent posture.
func openCVOutput(logger *log.Logger, settings config.Settings, eng *engine.AudioEngine, scratchDeck *deck.Deck) *cvOutput {
	for _, iface := range settings.AudioInterfaces {
		if !iface.SupportsCV || len(iface.OutputMap) == 0 {
			continue
		}

		chMap := make(cv.ChannelMap, len(iface.OutputMap))
		for ch, kindName := range iface.OutputMap {
			if kind, ok := cvKindNames[kindName]; ok {
				chMap[ch] = kind
			}
		}
		if len(chMap) == 0 {
			continue
		}

		proc := cv.NewProcessor(settings.SampleRate, chMap)
		channels := iface.Channels
		if channels <= 0 {
			channels = 2
		}

		callback := func(out []int16) {
			updateCVProcessor(proc, eng, scratchDeck)
			for i := 0; i+channels <= len(out); i += channels {
				proc.Process(out[i:i+channels], channels)
			}
		}

		outDev, err := portaudio.DefaultOutputDevice()
		if err != nil {
			logger.Warn("failed to resolve CV output device, continuing without it", "interface", iface.Name, "err", err)
			return nil
		}
		framesPerBuffer := int(iface.PeriodSize)
		if framesPerBuffer <= 0 {
			framesPerBuffer = 256
		}
		params := portaudio.StreamParameters{
			Output: portaudio.StreamDeviceParameters{
				Device:   outDev,
				Channels: channels,
				Latency:  outDev.DefaultLowOutputLatency,
			},
			SampleRate:      float64(settings.SampleRate),
			FramesPerBuffer: framesPerBuffer,
		}

		stream, err := portaudio.OpenStream(params, callback)
		if err != nil {
			logger.Warn("failed to open CV output interface, continuing without it", "interface", iface.Name, "err", err)
			return nil
		}
		if err := stream.Start(); err != nil {
			logger.Warn("failed to start CV output interface, continuing without it", "interface", iface.Name, "err", err)
			return nil
		}
		logger.Info("CV output active", "interface", iface.Name, "channels", channels)
		return &cvOutput{stream: stream}
	}
	return nil
}

// updateCVProcessor reads scratchDeck's current processing state and
// track length and rate (under the Player's spinlock, matching the RT
// engine's own try_lock posture) and feeds a ControllerInput snapshot to
// proc.
func updateCVProcessor(proc *cv.Processor, eng *engine.AudioEngine, scratchDeck *deck.Deck) {
	state := eng.DeckState(scratchDeck.Index)

	var length int64
	var rate float64
	if scratchDeck.Player.TryLock() {
		if tr := scratchDeck.Player.Track(); tr != nil {
			length = tr.Length()
			rate = float64(tr.Rate())
		}
		scratchDeck.Player.Unlock()
	}

	proc.Update(cv.ControllerInput{
		Pitch:            state.Pitch,
		EncoderAngle:     rawAngle(scratchDeck),
		SamplePosition:   int64((state.Position - state.PositionOffset) * rate),
		SampleLength:     length,
		FaderVolume:      state.Volume,
		CrossfaderTarget: scratchDeck.Input.Crossfader,
	})
}

// rawAngle reads the input thread's current platter angle directly;
// like every other DeckProcessingState-adjacent read crossing threads
// in this repo, a torn read is tolerated (spec.md §5: "worst case a
// slightly stale value, never undefined") since CV output is a
// best-effort supplemental feature, not the RT mix path.
func rawAngle(d *deck.Deck) uint16 {
	a := d.Enc.RawAngle
	if a < 0 {
		a = -a
	}
	return uint16(a % 4096)
}
