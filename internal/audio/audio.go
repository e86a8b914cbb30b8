// Package audio plays the alert sounds. Playback is fire-and-forget: a
// missing or undecodable file is skipped, and errors never reach the
// ingestion loop.
package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/banshee-data/riggy/internal/alert"
	"github.com/banshee-data/riggy/internal/config"
	"github.com/banshee-data/riggy/internal/monitoring"
	"github.com/banshee-data/riggy/internal/security"
)

// Player starts playback of a named sound and returns immediately.
type Player interface {
	Play(name string)
}

// Nop discards every request.
type Nop struct{}

func (Nop) Play(string) {}

// FilePlayer decodes mp3 files from Dir and plays them on the default
// output device.
type FilePlayer struct {
	Dir string

	mu          sync.Mutex
	initialised bool
	wg          sync.WaitGroup
}

// NewFilePlayer returns a player that resolves sound names against dir.
func NewFilePlayer(dir string) *FilePlayer {
	return &FilePlayer{Dir: dir}
}

// Play starts name in the background.
func (p *FilePlayer) Play(name string) {
	path, err := p.resolve(name)
	if err != nil {
		monitoring.Logf("Refusing to play %s: %v", name, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		// Sounds are optional.
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.play(path); err != nil {
			monitoring.Logf("Audio playback of %s failed: %v", name, err)
		}
	}()
}

// Wait blocks until every started sound has finished.
func (p *FilePlayer) Wait() { p.wg.Wait() }

// resolve keeps sound names, which may arrive in a start request, inside
// Dir.
func (p *FilePlayer) resolve(name string) (string, error) {
	if p.Dir == "" {
		return name, nil
	}
	return security.WithinDir(p.Dir, name)
}

func (p *FilePlayer) play(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode: %w", err)
	}
	defer streamer.Close()

	p.mu.Lock()
	if !p.initialised {
		if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("speaker init: %w", err)
		}
		p.initialised = true
	}
	p.mu.Unlock()

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// Announcer is an alert sink that plays one sound per alert kind.
type Announcer struct {
	player Player
	sounds map[alert.Kind]string
}

// NewAnnouncer maps each kind to the sound configured in cfg.
func NewAnnouncer(player Player, cfg *config.SessionConfig) *Announcer {
	if player == nil {
		player = Nop{}
	}
	return &Announcer{
		player: player,
		sounds: map[alert.Kind]string{
			alert.Tilt:      cfg.GetTiltSound(),
			alert.Vibration: cfg.GetVibrationSound(),
		},
	}
}

// OnAlert plays the sound for ev.Kind.
func (a *Announcer) OnAlert(ev alert.Event) {
	if name := a.sounds[ev.Kind]; name != "" {
		a.player.Play(name)
	}
}

// Recorder captures requested sounds.
type Recorder struct {
	mu     sync.Mutex
	played []string
}

func (r *Recorder) Play(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, name)
}

// Played returns the names requested so far.
func (r *Recorder) Played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.played...)
}

// Available reports which of names exist under dir. It is used at startup
// to warn about missing sounds once instead of on every alert.
func Available(dir string, names ...string) (found, missing []string) {
	p := &FilePlayer{Dir: dir}
	for _, n := range names {
		path, err := p.resolve(n)
		if err != nil {
			missing = append(missing, n)
			continue
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			missing = append(missing, n)
		} else if err == nil {
			found = append(found, n)
		}
	}
	return found, missing
}
