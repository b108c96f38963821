package ffmpeg

import "io"

// MediaInfo contains probed metadata about a media file
type MediaInfo struct {
	FilePath   string
	Duration   float64
	Width      int
	Height     int
	FPS        float64
	Bitrate    int64
	VideoCodec string
	HasVideo   bool
	HasAudio   bool
	AudioCodec string
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame   int
	FPS     float64
	Bitrate string
	Time    string
	Speed   string
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
	// Stdout receives raw output when the command writes to pipe:1
	Stdout io.Writer
}

// Encoder names understood by EncoderSettings
const (
	CodecX264  = "libx264"
	CodecNVENC = "h264_nvenc"
)

// EncoderSettings selects and tunes the video encoder for segment renders
type EncoderSettings struct {
	Codec   string
	Preset  string
	CRF     int
	Bitrate string
	Maxrate string
	Bufsize string
	FPS     int
}

// SegmentSpec describes one pass-1 segment encode
type SegmentSpec struct {
	Input string
	// Still inputs are looped for OutDur instead of trimmed
	Still   bool
	InStart float64
	InDur   float64
	OutDur  float64
	Filter  string
	Output  string
	Encoder EncoderSettings
}

// MuxSpec describes the pass-2 concat and audio mux
type MuxSpec struct {
	Audio        string
	AudioOffset  float64
	Segments     []string
	ListPath     string
	Duration     float64
	AudioBitrate string
	Output       string
}
