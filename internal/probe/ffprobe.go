package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/ark/pkg/models"
)

// ErrNoVideoStream is returned when the input has no decodable video stream
var ErrNoVideoStream = errors.New("no video stream found")

// FFprobe wraps ffprobe invocations
type FFprobe struct {
	ffprobePath string
	timeout     time.Duration
}

// New creates a new FFprobe instance
func New(ffprobePath string, timeout time.Duration) *FFprobe {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFprobe{
		ffprobePath: ffprobePath,
		timeout:     timeout,
	}
}

// Metadata holds the ffprobe JSON document
type Metadata struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	FrameRate    string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

// Probe extracts metadata from a file path or URL
func (f *FFprobe) Probe(ctx context.Context, input string) (*Metadata, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		input,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	return ParseMetadata(stdout.Bytes())
}

// VideoInfo probes input and reports its first video stream
func (f *FFprobe) VideoInfo(ctx context.Context, input string) (*models.VideoInfo, error) {
	metadata, err := f.Probe(ctx, input)
	if err != nil {
		return nil, err
	}
	return metadata.VideoInfo()
}

// ParseMetadata decodes ffprobe JSON output
func ParseMetadata(data []byte) (*Metadata, error) {
	var metadata Metadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &metadata, nil
}

// VideoInfo converts metadata into the video element view
func (m *Metadata) VideoInfo() (*models.VideoInfo, error) {
	for _, stream := range m.Streams {
		if stream.CodecType != "video" {
			continue
		}

		info := &models.VideoInfo{
			Width:  stream.Width,
			Height: stream.Height,
			Codec:  stream.CodecName,
		}

		if duration, err := strconv.ParseFloat(m.Format.Duration, 64); err == nil {
			info.Duration = duration
		} else if duration, err := strconv.ParseFloat(stream.Duration, 64); err == nil {
			info.Duration = duration
		}

		info.FrameRate = ParseFrameRate(stream.AvgFrameRate)
		if info.FrameRate == 0 {
			info.FrameRate = ParseFrameRate(stream.FrameRate)
		}

		return info, nil
	}
	return nil, ErrNoVideoStream
}

// ParseFrameRate parses ffprobe rationals like "30000/1001"
func ParseFrameRate(rate string) float64 {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(rate, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
