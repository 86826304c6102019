// Package rig implements the process's main thread (spec.md §4.7): it
// polls the quit pipe and every in-flight importer's stdout fd, drains
// importers as their pollables fire, and translates pending
// record_start/record_stop requests into engine state transitions and
// loop-navigation/beep feedback. It is grounded on
// original_source/software/src/core/sc1000.cpp's poll-then-dispatch
// shape and its handle_single_deck_recording helper.
package rig

import (
	"io"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"

	"github.com/charmbracelet/log"

	"github.com/lodsb/scratchd/internal/audiohw"
	"github.com/lodsb/scratchd/internal/deck"
	"github.com/lodsb/scratchd/internal/engine"
	"github.com/lodsb/scratchd/internal/track"
)

// pollTimeoutMs bounds how long one Poll call blocks when nothing is
// in flight, so Run notices a Quit() promptly even with zero
// importers.
const pollTimeoutMs = 250

// importJob is one in-flight decode subprocess feeding a Track,
// mirroring ImporterState's (pid, fd) pair plus the process handle and
// pipe the Rig needs to drain and reap it.
type importJob struct {
	cmd    *exec.Cmd
	stdout *os.File
	track  *track.Track
	rate   uint32
}

// Rig owns the process's main loop: the audio hardware port, the two
// decks (for record-request translation), and the set of in-flight
// importers.
type Rig struct {
	engine *engine.AudioEngine
	hw     *audiohw.Hardware
	decks  [2]*deck.Deck
	logger *log.Logger

	importing []*importJob

	quitR, quitW *os.File
}

// New builds a Rig wired to an already-open AudioHardware and the two
// decks whose DeckInput carries record requests.
func New(eng *engine.AudioEngine, hw *audiohw.Hardware, decks [2]*deck.Deck, logger *log.Logger) (*Rig, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &Rig{engine: eng, hw: hw, decks: decks, logger: logger, quitR: r, quitW: w}, nil
}

// Quit requests the main loop stop at its next poll iteration (the Go
// equivalent of sc1000's quit pipe write on SIGINT).
func (r *Rig) Quit() {
	_, _ = r.quitW.Write([]byte{0})
}

// StartImport spawns importerPath path as a decode subprocess (spec.md
// §6's importer protocol) and returns a fresh Track the Rig will drain
// as the subprocess's stdout becomes readable.
func (r *Rig) StartImport(importerPath, path string, rate uint32) (*track.Track, error) {
	cmd := exec.Command(importerPath, path)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	// cmd.StdoutPipe returns an *os.File-backed io.ReadCloser on unix;
	// the pollable fd it wraps is what the Run loop needs.
	f, ok := stdout.(*os.File)
	if !ok {
		return nil, io.ErrClosedPipe
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	t := track.New(rate)
	t.SetImporter(cmd.Process.Pid, int(f.Fd()))

	r.importing = append(r.importing, &importJob{cmd: cmd, stdout: f, track: t, rate: rate})
	return t, nil
}

// Run executes the poll-then-dispatch main loop until Quit is called.
// Each iteration: poll the quit pipe and every importer's fd; drain
// ready importers; translate pending recording requests.
func (r *Rig) Run() error {
	for {
		fds := r.buildPollSet()
		if _, err := unix.Poll(fds, pollTimeoutMs); err != nil && err != unix.EINTR {
			return err
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			return nil
		}

		for i, job := range r.importing {
			if fds[i+1].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
				r.drainImport(job)
			}
		}
		r.reapFinishedImports()

		r.handleDeckRecording()
	}
}

func (r *Rig) buildPollSet() []unix.PollFd {
	fds := make([]unix.PollFd, 1+len(r.importing))
	fds[0] = unix.PollFd{Fd: int32(r.quitR.Fd()), Events: unix.POLLIN}
	for i, job := range r.importing {
		fds[i+1] = unix.PollFd{Fd: int32(job.stdout.Fd()), Events: unix.POLLIN}
	}
	return fds
}

// drainImport reads whatever stereo i16 PCM is currently available
// from one importer's stdout and appends it to its Track, marking the
// import finished on EOF (spec.md §6: "no timing constraint; samples
// accumulate ... and become readable as length advances").
func (r *Rig) drainImport(job *importJob) {
	buf := make([]byte, 64*1024)
	n, err := job.stdout.Read(buf)
	if n > 0 {
		job.track.AppendFrames(decodeFrames(buf[:n]))
	}
	if err != nil {
		job.track.FinishImport()
		if r.logger != nil {
			if err != io.EOF {
				r.logger.Warn("importer stream ended with error", "pid", job.cmd.Process.Pid, "err", err)
			} else {
				r.logger.Debug("importer finished", "pid", job.cmd.Process.Pid)
			}
		}
	}
}

func decodeFrames(buf []byte) []track.Frame {
	n := len(buf) / 4
	frames := make([]track.Frame, n)
	for i := 0; i < n; i++ {
		l := int16(uint16(buf[4*i]) | uint16(buf[4*i+1])<<8)
		rr := int16(uint16(buf[4*i+2]) | uint16(buf[4*i+3])<<8)
		frames[i] = track.Frame{L: l, R: rr}
	}
	return frames
}

// reapFinishedImports waits on (non-blocking-equivalent: the subprocess
// has already hit EOF, so Wait won't block meaningfully) and drops any
// importer whose Track reports finished.
func (r *Rig) reapFinishedImports() {
	kept := r.importing[:0]
	for _, job := range r.importing {
		if job.track.ImporterFinished() {
			_ = job.cmd.Wait()
			_ = job.stdout.Close()
			continue
		}
		kept = append(kept, job)
	}
	r.importing = kept
}

// handleDeckRecording translates each deck's pending RecordStart/Stop
// requests into AudioEngine state transitions and deck-side navigation/
// beep feedback, adapted from sc1000.cpp's
// handle_single_deck_recording.
func (r *Rig) handleDeckRecording() {
	for i := range r.decks {
		d := r.decks[i]
		if d == nil {
			continue
		}
		in := d.Input

		if in.RecordStartRequested {
			if !r.engine.IsRecording(i) {
				position := r.engine.DeckState(i).Position
				if r.engine.StartRecording(i, position) {
					in.BeepRequest = deck.BeepRecordingStart
				} else {
					in.BeepRequest = deck.BeepRecordingError
				}
			}
			in.RecordStartRequested = false
		}

		if in.RecordStopRequested {
			if r.engine.IsRecording(i) {
				r.engine.StopRecording(i)
				d.AfterRecordingStopped()
				in.BeepRequest = deck.BeepRecordingStop
			}
			in.RecordStopRequested = false
		}
	}
}

// Close stops the audio hardware and releases the quit pipe.
func (r *Rig) Close() error {
	err := r.hw.Close()
	r.quitR.Close()
	r.quitW.Close()
	return err
}
