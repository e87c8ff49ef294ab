// Package audio plays out-of-band AI audio clips through an external
// ffplay process. Opus payloads are decoded to PCM first; everything else
// (mp3/wav/ogg) ffplay demuxes itself.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pion/opus"
	"github.com/rs/zerolog/log"
)

var ErrEmptyClip = errors.New("empty audio clip")

const pcmSampleRate = 48000

// Player runs one ffplay process per clip; clips are short, so process
// startup cost is acceptable and no daemon state is needed.
type Player struct {
	command string
}

func NewPlayer(command string) *Player {
	if command == "" {
		command = "ffplay"
	}
	return &Player{command: command}
}

// Play blocks until the clip finishes or ctx expires.
func (p *Player) Play(ctx context.Context, clip []byte, mimeType string) error {
	if len(clip) == 0 {
		return ErrEmptyClip
	}

	data := clip
	args := playArgs(mimeType)
	if isOpus(mimeType) {
		pcm, err := decodeOpus(clip)
		if err != nil {
			// Fall back to raw: the payload may be in an ogg container,
			// which ffplay handles natively.
			log.Warn().Err(err).Str("module", "audio").Msg("opus decode failed, playing raw")
			args = playArgs("")
		} else {
			data = pcm
		}
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", p.command, err, detail)
		}
		return fmt.Errorf("%s: %w", p.command, err)
	}
	return nil
}

// playArgs builds the ffplay invocation for a clip read from stdin.
func playArgs(mimeType string) []string {
	args := []string{"-autoexit", "-nodisp", "-loglevel", "error"}
	if isOpus(mimeType) {
		// Decoded PCM: mono s16le at the opus native rate.
		args = append(args, "-f", "s16le", "-ar", fmt.Sprintf("%d", pcmSampleRate), "-ch_layout", "mono")
	}
	return append(args, "-i", "-")
}

func isOpus(mimeType string) bool {
	return strings.Contains(strings.ToLower(mimeType), "opus")
}

// decodeOpus decodes one bare opus frame to little-endian PCM. The payload
// must hold a single frame: bare frames carry no length framing, so a
// concatenated stream cannot be split here. Multi-frame clips need an ogg
// container, which fails this decode and plays raw via the caller's
// fallback, where ffplay demuxes it.
func decodeOpus(frame []byte) ([]byte, error) {
	dec := opus.NewDecoder()
	// 40ms at 48kHz covers typical real-time frames.
	out := make([]byte, 1920*2)
	if _, _, err := dec.Decode(frame, out); err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	return out, nil
}
