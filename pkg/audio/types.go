package audio

import "time"

// Channel identifies the origin of an audio frame.
type Channel string

const (
	// ChannelLive marks audio captured from meeting participants.
	ChannelLive Channel = "live"

	// ChannelSelfPlayback marks the assistant's own synthesized speech looped
	// back through the capture path. Frames with this tag are never treated
	// as participant speech.
	ChannelSelfPlayback Channel = "self-playback"
)

// AudioFrame represents a single frame of audio data flowing through the pipeline.
// Frames are the atomic unit of audio transport — captured from the device bridge,
// classified by the segmenter, and played back through the output half of the device.
type AudioFrame struct {
	// Seq is a per-source monotonically increasing frame number, assigned by
	// the [Source] on emit.
	Seq uint64

	// PCM audio data, 16-bit little-endian samples. Sample rate and channel
	// count are carried alongside so downstream stages never guess.
	Data []byte

	// SampleRate in Hz (e.g., 48000 from the opus bridge, 16000 for STT).
	SampleRate int

	// Channels: 1 for mono, 2 for interleaved stereo.
	Channels int

	// Timestamp marks when this frame was captured.
	Timestamp time.Time

	// Channel tags the frame origin: live capture or self playback.
	Channel Channel
}

// Duration returns the playback duration of the frame, or 0 when the frame
// carries no sample-rate information.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Valid reports whether the frame carries well-formed 16-bit PCM: a non-empty
// payload with an even byte count and positive format fields. Malformed frames
// are dropped (and counted) by the segmenter rather than failing the pipeline.
func (f AudioFrame) Valid() bool {
	return len(f.Data) > 0 && len(f.Data)%2 == 0 && f.SampleRate > 0 && f.Channels > 0
}

// Segment is a contiguous run of speech extracted from the frame stream by the
// segmenter. It is the unit of work handed to speech-to-text.
type Segment struct {
	// Seq is a per-segmenter monotonically increasing segment number.
	Seq uint64

	// PCM is the concatenated 16-bit little-endian audio of the segment.
	PCM []byte

	// SampleRate and Channels describe the PCM format.
	SampleRate int
	Channels   int

	// Start and End are the capture timestamps of the first and last frame.
	Start time.Time
	End   time.Time

	// Channel is the origin tag inherited from the frames.
	Channel Channel

	// Frames is the number of audio frames folded into this segment.
	Frames int
}

// Duration returns End minus Start.
func (s Segment) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
