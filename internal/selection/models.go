package selection

// StreamKind categorizes a remote stream by the tracks it carries.
type StreamKind string

const (
	// KindSingleFile is a muxed rendition carrying both video and audio,
	// playable without merging.
	KindSingleFile StreamKind = "single-file"

	// KindVideoOnly is an elementary video stream that must be paired with an
	// audio stream before playback.
	KindVideoOnly StreamKind = "video-only"

	// KindAudioOnly is an elementary audio stream.
	KindAudioOnly StreamKind = "audio-only"
)

// StreamDescriptor is the normalized view of one remote stream's technical
// attributes, populated at the enumeration boundary. Missing attributes are
// zero values; there is no conditional field presence.
type StreamDescriptor struct {
	ID               string     `json:"id"`
	Kind             StreamKind `json:"kind"`
	ResolutionLines  int        `json:"resolution_lines"`   // 0 if not video
	FrameRate        int        `json:"frame_rate"`         // 0 when unknown
	VideoCodec       string     `json:"video_codec"`
	AudioCodec       string     `json:"audio_codec"`
	AudioBitrateKbps int        `json:"audio_bitrate_kbps"` // 0 if not audio
	ByteSize         int64      `json:"byte_size"`          // 0 when unknown
	ContainerFormat  string     `json:"container_format"`
	URL              string     `json:"url,omitempty"`
}

// SizeMegabytes returns the stream's size in MB, or 0 when the byte size is unknown.
func (d StreamDescriptor) SizeMegabytes() float64 {
	if d.ByteSize <= 0 {
		return 0
	}
	return float64(d.ByteSize) / (1024 * 1024)
}

// ScoredStream pairs a descriptor with its computed quality score.
type ScoredStream struct {
	Stream        StreamDescriptor `json:"stream"`
	QualityScore  int              `json:"quality_score"`
	SizeMegabytes float64          `json:"size_mb"`
}

// Strategy names the acquisition shape of a selection plan.
type Strategy string

const (
	// StrategySingleFile downloads one muxed stream; no merge step.
	StrategySingleFile Strategy = "single-file"

	// StrategyMerge downloads a video-only and an audio-only stream and
	// combines them with the external merge tool.
	StrategyMerge Strategy = "merge"
)

// SelectionPlan is the immutable output of the selection engine, consumed
// exactly once by the download pipeline and safe to cache verbatim.
type SelectionPlan struct {
	Strategy        Strategy          `json:"strategy"`
	Primary         StreamDescriptor  `json:"primary"`
	Secondary       *StreamDescriptor `json:"secondary,omitempty"` // set iff Strategy == StrategyMerge
	EstimatedSizeMB float64           `json:"estimated_size_mb"`
	QualityLabel    string            `json:"quality_label"`
	MergeRequired   bool              `json:"merge_required"`
}
