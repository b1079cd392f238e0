package workspace

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const defaultSampleRate = 24000

var (
	ErrAudioBusy    = errors.New("audio overview is being generated")
	ErrClipNotFound = errors.New("audio clip not found")
)

// AudioClip is a decoded, playable overview.
type AudioClip struct {
	ID       string
	MIMEType string
	Data     []byte
}

// DecodeClip decodes a base64 payload. Raw PCM is wrapped in a WAV container
// so a browser can play it directly.
func DecodeClip(payload, mimeType string) (*AudioClip, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if rate, ok := pcmRate(mimeType); ok {
		data = wavFromPCM(data, rate)
		mimeType = "audio/wav"
	}
	return &AudioClip{ID: uuid.NewString(), MIMEType: mimeType, Data: data}, nil
}

func pcmRate(mimeType string) (int, bool) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		// Gemini sends "audio/L16;codec=pcm;rate=24000" which some parsers reject.
		parts := strings.Split(mimeType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(parts[0]))
		params = map[string]string{}
		for _, p := range parts[1:] {
			if k, v, ok := strings.Cut(strings.TrimSpace(p), "="); ok {
				params[strings.ToLower(k)] = v
			}
		}
	}
	switch strings.ToLower(mediaType) {
	case "audio/l16", "audio/pcm":
	default:
		return 0, false
	}
	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		rate = defaultSampleRate
	}
	return rate, true
}

// wavFromPCM prepends a 44 byte RIFF header for 16-bit mono little-endian PCM.
func wavFromPCM(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// AudioState is what the dashboard shows for the audio control.
type AudioState struct {
	Playing    bool   `json:"isPlaying"`
	Generating bool   `json:"isGenerating"`
	ClipID     string `json:"clipId,omitempty"`
}

// AudioPlayer holds at most one clip. Loading a new clip or releasing the
// player drops the previous one.
type AudioPlayer struct {
	mu         sync.Mutex
	clip       *AudioClip
	playing    bool
	generating bool
}

// BeginGenerate reserves the player for a synthesis request.
func (p *AudioPlayer) BeginGenerate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generating {
		return ErrAudioBusy
	}
	p.generating = true
	return nil
}

// EndGenerate loads clip (when non-nil) and starts playback.
func (p *AudioPlayer) EndGenerate(clip *AudioClip) AudioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generating = false
	if clip != nil {
		p.clip = clip
		p.playing = true
	}
	return p.stateLocked()
}

// Toggle flips playback of an existing clip. It reports false when there is
// nothing loaded and a clip must be generated first.
func (p *AudioPlayer) Toggle() (AudioState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clip == nil {
		return p.stateLocked(), false
	}
	p.playing = !p.playing
	return p.stateLocked(), true
}

// Stopped marks the end of playback.
func (p *AudioPlayer) Stopped() AudioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	return p.stateLocked()
}

// Clip returns the loaded clip when id matches it.
func (p *AudioPlayer) Clip(id string) (*AudioClip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clip == nil || p.clip.ID != id {
		return nil, ErrClipNotFound
	}
	return p.clip, nil
}

// Release drops the clip.
func (p *AudioPlayer) Release() {
	p.mu.Lock()
	p.clip = nil
	p.playing = false
	p.mu.Unlock()
}

func (p *AudioPlayer) State() AudioState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *AudioPlayer) stateLocked() AudioState {
	st := AudioState{Playing: p.playing, Generating: p.generating}
	if p.clip != nil {
		st.ClipID = p.clip.ID
	}
	return st
}
