package ffmpeg

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keagan/beatcut/internal/errkind"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

const videoProbe = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080,
     "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "duration": "12.012000"},
    {"index": 1, "codec_type": "audio", "codec_name": "aac", "duration": "12.000000"}
  ],
  "format": {"duration": "12.012000", "bit_rate": "8000000"}
}`

func TestParseProbeVideo(t *testing.T) {
	info, err := ParseProbe("clip.mp4", []byte(videoProbe))
	require.NoError(t, err)

	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 29.97, info.FPS, 0.01)
	assert.InDelta(t, 12.012, info.Duration, 1e-9)
	assert.Equal(t, int64(8000000), info.Bitrate)
	assert.True(t, info.HasVideo)
	assert.True(t, info.HasAudio)
	assert.Equal(t, "h264", info.VideoCodec)
}

func TestParseProbeStillImage(t *testing.T) {
	data := `{"streams":[{"codec_type":"video","codec_name":"png","width":800,"height":600,
	  "r_frame_rate":"25/1","avg_frame_rate":"0/0"}],"format":{}}`

	info, err := ParseProbe("photo.png", []byte(data))
	require.NoError(t, err)
	assert.Equal(t, 800, info.Width)
	assert.Equal(t, 25.0, info.FPS)
	assert.Zero(t, info.Duration)
}

func TestParseProbeAudioOnly(t *testing.T) {
	data := `{"streams":[{"codec_type":"audio","codec_name":"mp3","duration":"30.5"}],"format":{}}`

	info, err := ParseProbe("track.mp3", []byte(data))
	require.NoError(t, err)
	assert.False(t, info.HasVideo)
	assert.InDelta(t, 30.5, info.Duration, 1e-9)
}

func TestParseProbeRejectsGarbage(t *testing.T) {
	_, err := ParseProbe("x.mp4", []byte("not json"))
	assert.Error(t, err)

	_, err = ParseProbe("x.mp4", []byte(`{"streams":[],"format":{}}`))
	assert.Error(t, err)
}

func TestFilterBuilderSegmentChain(t *testing.T) {
	got := NewFilterBuilder().
		SetPTS(1.04).
		ScaleFill(1080, 1920).
		CenterCrop(1080, 1920).
		SetSAR().
		FPS(30).
		Eq(1.18, 0.86, -0.02, 1.02).
		Noise(6).
		Format("yuv420p").
		Build()

	want := "setpts=PTS/1.04," +
		"scale=1080:1920:force_original_aspect_ratio=increase," +
		"crop=1080:1920,setsar=1,fps=30," +
		"eq=contrast=1.18:saturation=0.86:brightness=-0.02:gamma=1.02," +
		"noise=alls=6:allf=t,format=yuv420p"
	assert.Equal(t, want, got)
}

func TestFilterBuilderSkipsNoops(t *testing.T) {
	got := NewFilterBuilder().SetPTS(1).Noise(0).Scale(0, 10).DrawText(DrawTextOptions{Text: "  "}).Build()
	assert.Empty(t, got)
}

func TestDrawTextOptions(t *testing.T) {
	opts := DrawTextOptions{
		Text:        "50% OFF\nNOW",
		FontFile:    `C:\Windows\Fonts\arial.ttf`,
		FontSize:    65,
		BorderWidth: 4,
		Y:           "h*0.2",
		Start:       0.25,
		End:         1.5,
	}
	got := opts.String()

	assert.True(t, strings.HasPrefix(got, "drawtext="))
	assert.Contains(t, got, `fontfile='C\:/Windows/Fonts/arial.ttf'`)
	assert.Contains(t, got, `text='50\% OFF`+"\n"+`NOW'`)
	assert.Contains(t, got, "fontsize=65")
	assert.Contains(t, got, "borderw=4:bordercolor=black")
	assert.Contains(t, got, "x=(w-text_w)/2:y=h*0.2")
	assert.Contains(t, got, "enable='between(t,0.250,1.500)'")
}

func TestBuildSegmentArgsVideo(t *testing.T) {
	args, err := BuildSegmentArgs(SegmentSpec{
		Input:   "/clips/a.mp4",
		InStart: 1.5,
		InDur:   0.52,
		OutDur:  0.5,
		Filter:  "setpts=PTS/1.04",
		Output:  "/work/seg_000.mp4",
		Encoder: EncoderSettings{Codec: CodecX264, Preset: "ultrafast", CRF: 18, FPS: 30},
	})
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.True(t, strings.HasPrefix(joined, "-ss 1.500000 -t 0.520000 -i /clips/a.mp4 -vf setpts=PTS/1.04"))
	assert.Contains(t, joined, "-t 0.500000 -an")
	assert.Contains(t, joined, "-c:v libx264 -preset ultrafast -crf 18 -r 30 -pix_fmt yuv420p")
	assert.Equal(t, "/work/seg_000.mp4", args[len(args)-1])
}

func TestBuildSegmentArgsStill(t *testing.T) {
	args, err := BuildSegmentArgs(SegmentSpec{
		Input:  "/clips/p.jpg",
		Still:  true,
		OutDur: 0.75,
		Output: "/work/seg_001.mp4",
		Encoder: EncoderSettings{
			Codec: CodecNVENC, Bitrate: "14M", Maxrate: "18M", Bufsize: "28M",
		},
	})
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.True(t, strings.HasPrefix(joined, "-loop 1 -t 0.750000 -i /clips/p.jpg"))
	assert.NotContains(t, joined, "-ss")
	assert.Contains(t, joined, "-c:v h264_nvenc -preset p1 -rc:v vbr -b:v 14M -maxrate 18M -bufsize 28M")
}

func TestBuildSegmentArgsValidation(t *testing.T) {
	_, err := BuildSegmentArgs(SegmentSpec{Output: "o.mp4", OutDur: 1})
	assert.Error(t, err)

	_, err = BuildSegmentArgs(SegmentSpec{Input: "i.mp4", Output: "o.mp4", OutDur: 1})
	assert.Error(t, err, "video input needs a positive in duration")

	_, err = BuildSegmentArgs(SegmentSpec{Input: "i.mp4", Output: "o.mp4", InDur: 1})
	assert.Error(t, err)
}

func TestBuildMuxArgs(t *testing.T) {
	args := BuildMuxArgs(MuxSpec{
		Audio:       "/music/song.mp3",
		AudioOffset: 0.42,
		ListPath:    "/work/concat.txt",
		Duration:    8.75,
		Output:      "/out/final.partial.mp4",
	})

	joined := strings.Join(args, " ")
	assert.Equal(t,
		"-ss 0.420000 -i /music/song.mp3 -f concat -safe 0 -i /work/concat.txt "+
			"-map 1:v:0 -map 0:a:0 -c:v copy -c:a aac -b:a 192k -t 8.750000 "+
			"-shortest -movflags +faststart /out/final.partial.mp4",
		joined)
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "concat.txt")
	segs := []string{filepath.Join(dir, "seg_000.mp4"), filepath.Join(dir, "it's.mp4")}

	require.NoError(t, WriteConcatList(list, segs))

	data, err := os.ReadFile(list)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "file '"+filepath.ToSlash(segs[0])+"'", lines[0])
	assert.Contains(t, lines[1], `it'\''s.mp4`)
}

func TestDecodeF32LE(t *testing.T) {
	want := []float32{0, 0.5, -1, 0.25}
	buf := make([]byte, 0, len(want)*4+2)
	for _, v := range want {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	buf = append(buf, 0x01, 0x02) // partial sample

	assert.Equal(t, want, decodeF32LE(buf))
}

func TestSplitGrayFrames(t *testing.T) {
	data := make([]byte, 2*4*3+5)
	for i := range data {
		data[i] = byte(i)
	}
	frames := splitGrayFrames(data, 4, 3)
	require.Len(t, frames, 2)
	assert.Equal(t, byte(12), frames[1].Pix[0])
	assert.Equal(t, 4, frames[0].Bounds().Dx())
}

func TestListHas(t *testing.T) {
	listing := `Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
`
	assert.True(t, listHas(listing, "h264_nvenc"))
	assert.True(t, listHas(listing, "libx264"))
	assert.False(t, listHas(listing, "hevc_nvenc"))
}

func TestDetectEncoderHonorsExplicitChoice(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}
	assert.Equal(t, CodecX264, e.DetectEncoder(context.Background(), CodecX264))
	assert.Equal(t, CodecNVENC, e.DetectEncoder(context.Background(), CodecNVENC))
}

func TestHasEncoderUsesCachedListing(t *testing.T) {
	e := &Executor{
		logger:   zerolog.Nop(),
		encoders: " V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)\n",
	}
	assert.True(t, e.HasEncoder(context.Background(), CodecX264))
	assert.False(t, e.HasEncoder(context.Background(), CodecNVENC))
	assert.Equal(t, CodecX264, e.DetectEncoder(context.Background(), "auto"))
}

func TestStreamOutputSeparatesProgress(t *testing.T) {
	input := strings.Join([]string{
		"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'a.mp4':",
		"frame=12",
		"fps=24.0",
		"out_time=00:00:00.500000",
		"speed=2.1x",
		"progress=continue",
		"[libx264 @ 0x1] frame I:1",
		"frame=24",
		"progress=end",
	}, "\n")

	e := &Executor{logger: zerolog.Nop()}
	tail := &tailBuffer{limit: 1024}
	var progress []Progress
	var logs []string

	e.streamOutput(strings.NewReader(input), tail,
		func(p *Progress) { progress = append(progress, *p) },
		func(line string) { logs = append(logs, line) })

	require.Len(t, progress, 2)
	assert.Equal(t, 12, progress[0].Frame)
	assert.Equal(t, "2.1x", progress[0].Speed)
	assert.Equal(t, "00:00:00.500000", progress[0].Time)
	assert.Equal(t, 24, progress[1].Frame)
	assert.Len(t, logs, 2)
	assert.NotContains(t, tail.String(), "frame=")
}

func TestTailBufferKeepsEnd(t *testing.T) {
	tail := &tailBuffer{limit: 10}
	tail.WriteLine("0123456789")
	tail.WriteLine("abc")
	assert.Equal(t, "56789\nabc\n", tail.String())
}

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	skipIfNoFFmpeg(t)
	e, err := New(zerolog.Nop(), Options{})
	require.NoError(t, err)
	return e
}

func makeTestSource(t *testing.T, e *Executor) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "src.mp4")
	err := e.Run(context.Background(), RunOptions{Args: []string{
		"-f", "lavfi", "-i", "testsrc=size=320x240:rate=30:duration=2",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=2",
		"-c:v", "mpeg4", "-c:a", "aac", "-shortest", src,
	}})
	require.NoError(t, err)
	return src
}

func TestIntegrationProbeAndSample(t *testing.T) {
	e := newTestExecutor(t)
	src := makeTestSource(t, e)
	ctx := context.Background()

	info, err := e.Probe(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 320, info.Width)
	assert.Equal(t, 240, info.Height)
	assert.InDelta(t, 2.0, info.Duration, 0.2)

	frames, err := e.SampleGrayFrames(ctx, src, 1.0, 15, 64, 48)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(frames), 10)

	samples, err := e.DecodePCM(ctx, src, 22050)
	require.NoError(t, err)
	assert.InDelta(t, 2*22050, len(samples), 4000)
}

func TestIntegrationRunFailureIsExternalToolError(t *testing.T) {
	e := newTestExecutor(t)
	err := e.Run(context.Background(), RunOptions{Args: []string{
		"-i", filepath.Join(t.TempDir(), "missing.mp4"), "-f", "null", "-",
	}})
	require.Error(t, err)

	var toolErr *errkind.ExternalToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "ffmpeg", toolErr.Tool)
	assert.NotEmpty(t, toolErr.Stderr)
}
