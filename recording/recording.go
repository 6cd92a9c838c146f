// Package recording saves a validated RunResult to a file and loads it back,
// so a comparison can be replayed without contacting the simulation service.
//
// A recording is a stream of length-prefixed msgpack frames: one header frame
// carrying the per-track counts, then one entry frame per log entry, adaptive
// entries first. Readers verify the counts, so a truncated file is detected.
package recording

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pithecene-io/crossflow/types"
)

// Frame type discriminants.
const (
	HeaderType = "header"
	EntryType  = "entry"
)

// Header is the first frame of a recording.
type Header struct {
	Type            string    `msgpack:"type"`
	ContractVersion string    `msgpack:"contract_version"`
	RecordedAt      time.Time `msgpack:"recorded_at"`
	Adaptive        int       `msgpack:"adaptive"`
	Fixed           int       `msgpack:"fixed"`
}

type entryFrame struct {
	Type  string         `msgpack:"type"`
	Track types.Track    `msgpack:"track"`
	Entry types.LogEntry `msgpack:"entry"`
}

// Write encodes result as a recording.
func Write(w io.Writer, result *types.RunResult, recordedAt time.Time) error {
	if result == nil {
		return errors.New("nil result")
	}

	enc := NewFrameEncoder(w)
	if err := enc.WriteFrame(Header{
		Type:            HeaderType,
		ContractVersion: types.ContractVersion,
		RecordedAt:      recordedAt.UTC(),
		Adaptive:        len(result.Adaptive),
		Fixed:           len(result.Fixed),
	}); err != nil {
		return err
	}

	for _, track := range []types.Track{types.TrackAdaptive, types.TrackFixed} {
		for i, e := range result.Entries(track) {
			if err := enc.WriteFrame(entryFrame{Type: EntryType, Track: track, Entry: e}); err != nil {
				return fmt.Errorf("%s entry %d: %w", track, i, err)
			}
		}
	}
	return nil
}

// Read decodes a recording. Entries keep their recorded order.
func Read(r io.Reader) (*Header, *types.RunResult, error) {
	dec := NewFrameDecoder(r)

	payload, err := dec.ReadFrame()
	if err == io.EOF {
		return nil, nil, &FrameError{Kind: FrameErrorPartial, Msg: "empty recording"}
	}
	if err != nil {
		return nil, nil, err
	}

	var header Header
	if err := decode(payload, &header, "header"); err != nil {
		return nil, nil, err
	}
	if header.Type != HeaderType {
		return nil, nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("expected header frame, got %q", header.Type)}
	}
	if header.Adaptive < 0 || header.Fixed < 0 {
		return nil, nil, &FrameError{Kind: FrameErrorDecode, Msg: "negative entry count in header"}
	}

	result := &types.RunResult{
		Adaptive: make([]types.LogEntry, 0, min(header.Adaptive, 4096)),
		Fixed:    make([]types.LogEntry, 0, min(header.Fixed, 4096)),
	}

	total := header.Adaptive + header.Fixed
	for i := range total {
		payload, err := dec.ReadFrame()
		if err == io.EOF {
			return nil, nil, &FrameError{
				Kind: FrameErrorPartial,
				Msg:  fmt.Sprintf("recording ended after %d of %d entries", i, total),
			}
		}
		if err != nil {
			return nil, nil, err
		}

		var f entryFrame
		if err := decode(payload, &f, "entry"); err != nil {
			return nil, nil, err
		}
		if f.Type != EntryType {
			return nil, nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("expected entry frame, got %q", f.Type)}
		}

		// Adaptive entries precede fixed ones.
		want := types.TrackFixed
		if i < header.Adaptive {
			want = types.TrackAdaptive
		}
		if f.Track != want {
			return nil, nil, &FrameError{Kind: FrameErrorDecode, Msg: fmt.Sprintf("entry %d: expected %s track, got %q", i, want, f.Track)}
		}

		if want == types.TrackAdaptive {
			result.Adaptive = append(result.Adaptive, f.Entry)
		} else {
			result.Fixed = append(result.Fixed, f.Entry)
		}
	}

	if _, err := dec.ReadFrame(); err != io.EOF {
		if err == nil {
			return nil, nil, &FrameError{Kind: FrameErrorDecode, Msg: "unexpected frame after last entry"}
		}
		return nil, nil, err
	}

	return &header, result, nil
}

// Save writes a recording to path, replacing any existing file.
func Save(path string, result *types.RunResult, recordedAt time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}
	if err := Write(f, result, recordedAt); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write recording %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close recording %s: %w", path, err)
	}
	return nil
}

// Load reads a recording from path.
func Load(path string) (*Header, *types.RunResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer func() { _ = f.Close() }()

	header, result, err := Read(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read recording %s: %w", path, err)
	}
	return header, result, nil
}
