package selection

import "strings"

// Resolution tier base scores. Resolution dominates every bonus so the score
// stays strictly monotonic in tier.
const (
	scoreVideo2160 = 1000
	scoreVideo1440 = 800
	scoreVideo1080 = 600
	scoreVideo720  = 400
	scoreVideo480  = 200
)

// Audio bitrate tier base scores.
const (
	scoreAudio320 = 300
	scoreAudio256 = 250
	scoreAudio192 = 200
	scoreAudio128 = 150
	scoreAudio96  = 100
)

// Frame rate and codec efficiency bonuses. Bonuses are mutually exclusive
// within their category and stack additively across categories.
const (
	bonusFPS60 = 50
	bonusFPS30 = 25

	bonusCodecAV1  = 30
	bonusCodecVP9  = 20
	bonusCodecH264 = 10

	bonusCodecOpus = 25
	bonusCodecAAC  = 20
	bonusCodecMP3  = 10
)

// ScoreVideo computes the quality score for a video-bearing stream. It is a
// pure function and total over all descriptors: missing fields contribute zero,
// the score is never negative.
func ScoreVideo(d StreamDescriptor) int {
	score := 0

	switch res := d.ResolutionLines; {
	case res >= 2160:
		score += scoreVideo2160
	case res >= 1440:
		score += scoreVideo1440
	case res >= 1080:
		score += scoreVideo1080
	case res >= 720:
		score += scoreVideo720
	case res >= 480:
		score += scoreVideo480
	case res > 0:
		score += res / 10
	}

	switch fps := d.FrameRate; {
	case fps >= 60:
		score += bonusFPS60
	case fps >= 30:
		score += bonusFPS30
	}

	codec := strings.ToLower(d.VideoCodec)
	switch {
	case strings.Contains(codec, "av01") || strings.Contains(codec, "av1"):
		score += bonusCodecAV1
	case strings.Contains(codec, "vp9"):
		score += bonusCodecVP9
	case strings.Contains(codec, "h264") || strings.Contains(codec, "avc1"):
		score += bonusCodecH264
	}

	return score
}

// ScoreAudio computes the quality score for an audio stream.
func ScoreAudio(d StreamDescriptor) int {
	score := 0

	switch abr := d.AudioBitrateKbps; {
	case abr >= 320:
		score += scoreAudio320
	case abr >= 256:
		score += scoreAudio256
	case abr >= 192:
		score += scoreAudio192
	case abr >= 128:
		score += scoreAudio128
	case abr >= 96:
		score += scoreAudio96
	case abr > 0:
		score += abr
	}

	codec := strings.ToLower(d.AudioCodec)
	switch {
	case strings.Contains(codec, "opus"):
		score += bonusCodecOpus
	case strings.Contains(codec, "aac") || strings.Contains(codec, "mp4a"):
		score += bonusCodecAAC
	case strings.Contains(codec, "mp3"):
		score += bonusCodecMP3
	}

	return score
}

// Score dispatches to the scorer matching the descriptor's kind. Single-file
// and video-only streams score on their video attributes; audio-only streams
// score on bitrate and audio codec.
func Score(d StreamDescriptor) int {
	if d.Kind == KindAudioOnly {
		return ScoreAudio(d)
	}
	return ScoreVideo(d)
}
