package ffmpeg

import (
	"context"
	"fmt"

	"github.com/keagan/beatcut/internal/errkind"
	"github.com/keagan/beatcut/pkg/util"
	"github.com/tidwall/gjson"
)

// Probe extracts metadata from a media file
func (e *Executor) Probe(ctx context.Context, filePath string) (*MediaInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	output, err := e.query(ctx, e.ffprobePath, args...)
	if err != nil {
		return nil, err
	}

	info, err := ParseProbe(filePath, output)
	if err != nil {
		return nil, errkind.NewExternalToolError("ffprobe", args, err.Error(), err)
	}
	return info, nil
}

// ParseProbe reads ffprobe -print_format json output
func ParseProbe(filePath string, data []byte) (*MediaInfo, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("ffprobe output for %s is not valid JSON", filePath)
	}

	doc := gjson.ParseBytes(data)
	info := &MediaInfo{
		FilePath: filePath,
		Duration: doc.Get("format.duration").Float(),
		Bitrate:  doc.Get("format.bit_rate").Int(),
	}

	video := doc.Get(`streams.#(codec_type=="video")`)
	if video.Exists() {
		info.HasVideo = true
		info.Width = int(video.Get("width").Int())
		info.Height = int(video.Get("height").Int())
		info.VideoCodec = video.Get("codec_name").String()

		// r_frame_rate is "0/0" for some containers
		info.FPS = util.ParseFrameRate(video.Get("avg_frame_rate").String())
		if info.FPS <= 0 {
			info.FPS = util.ParseFrameRate(video.Get("r_frame_rate").String())
		}
		if info.Duration <= 0 {
			info.Duration = video.Get("duration").Float()
		}
	}

	audio := doc.Get(`streams.#(codec_type=="audio")`)
	if audio.Exists() {
		info.HasAudio = true
		info.AudioCodec = audio.Get("codec_name").String()
		if info.Duration <= 0 {
			info.Duration = audio.Get("duration").Float()
		}
	}

	if !info.HasVideo && !info.HasAudio {
		return nil, fmt.Errorf("no audio or video streams in %s", filePath)
	}

	return info, nil
}
