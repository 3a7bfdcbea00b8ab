package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
)

// DecodeFile decodes any format ffmpeg understands into interleaved stereo
// int16 at SampleRate. An empty bin means "ffmpeg" on PATH.
func DecodeFile(bin, path string) ([]int16, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	var stderr bytes.Buffer
	cmd := exec.Command(bin,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %s", path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return bytesToSamples(out, path)
}

func bytesToSamples(pcm []byte, path string) ([]int16, error) {
	pcm = pcm[:len(pcm)-len(pcm)%(Channels*2)]
	if len(pcm) == 0 {
		return nil, fmt.Errorf("decode %s: no audio", path)
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
