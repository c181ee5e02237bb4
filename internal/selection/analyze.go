package selection

import "sort"

// Analysis groups the scored streams of one asset into the three ranked
// categories consumed by the selection engine. Each list is sorted descending
// by quality score.
type Analysis struct {
	SingleFile []ScoredStream `json:"single_file"`
	VideoOnly  []ScoredStream `json:"video_only"`
	AudioOnly  []ScoredStream `json:"audio_only"`
}

// Analyze partitions raw descriptors into single-file, video-only, and
// audio-only categories with quality scores. Video categories require a
// resolution and the audio category requires a bitrate; descriptors lacking
// the dimension for their category are dropped. An empty or nil input yields
// three empty lists, never an error: "no candidates" is a valid outcome.
func Analyze(streams []StreamDescriptor) Analysis {
	var a Analysis

	for _, d := range streams {
		switch d.Kind {
		case KindSingleFile:
			if d.ResolutionLines <= 0 {
				continue
			}
			a.SingleFile = append(a.SingleFile, scored(d))
		case KindVideoOnly:
			if d.ResolutionLines <= 0 {
				continue
			}
			a.VideoOnly = append(a.VideoOnly, scored(d))
		case KindAudioOnly:
			if d.AudioBitrateKbps <= 0 {
				continue
			}
			a.AudioOnly = append(a.AudioOnly, scored(d))
		}
	}

	// Stable sort: equal scores keep discovery order. The tie-break is
	// deliberately unspecified and not guaranteed across re-enumeration.
	sortByScore(a.SingleFile)
	sortByScore(a.VideoOnly)
	sortByScore(a.AudioOnly)

	return a
}

func scored(d StreamDescriptor) ScoredStream {
	return ScoredStream{
		Stream:        d,
		QualityScore:  Score(d),
		SizeMegabytes: d.SizeMegabytes(),
	}
}

func sortByScore(streams []ScoredStream) {
	sort.SliceStable(streams, func(i, j int) bool {
		return streams[i].QualityScore > streams[j].QualityScore
	})
}
