package selection

import (
	"fmt"
	"log/slog"
)

// mergeAdvantageFactor is the resolution multiple at which a merge plan is
// preferred over the best single-file rendition. The comparison is a strict
// greater-than; the constant is a fixed heuristic and changing it changes
// observable selection outcomes.
const mergeAdvantageFactor = 1.5

// acceptableSingleFileLines is the minimum single-file resolution considered
// good enough to skip merging.
const acceptableSingleFileLines = 720

// Engine applies the selection policy to an analysis and produces a plan.
type Engine struct {
	log *slog.Logger
}

// NewEngine returns an Engine that logs its decisions to log.
func NewEngine(log *slog.Logger) *Engine {
	return &Engine{log: log}
}

// Select picks the best acquisition plan from the analyzed categories.
// preferSingleFile biases toward the no-merge path, but only when single-file
// quality is already acceptable. The ok return is false when no viable stream
// combination exists; that is a normal outcome, not an error.
//
// The policy, in strict priority order:
//  1. merge, when adaptive video beats the best single-file by more than
//     mergeAdvantageFactor or the best single-file is below 720 lines;
//  2. single-file at >= 720 lines, when the caller prefers it;
//  3. merge of the best adaptive pair (fallback);
//  4. any single-file rendition (last resort, quality unconstrained);
//  5. nothing.
func (e *Engine) Select(a Analysis, preferSingleFile bool) (SelectionPlan, bool) {
	var bestSingleLines int
	if len(a.SingleFile) > 0 {
		bestSingleLines = a.SingleFile[0].Stream.ResolutionLines
	}

	if len(a.VideoOnly) > 0 && len(a.AudioOnly) > 0 {
		bestVideo := a.VideoOnly[0]
		videoLines := bestVideo.Stream.ResolutionLines

		if float64(videoLines) > float64(bestSingleLines)*mergeAdvantageFactor ||
			bestSingleLines < acceptableSingleFileLines {
			e.log.Debug("selecting merge plan",
				slog.Int("video_lines", videoLines),
				slog.Int("single_file_lines", bestSingleLines))
			return e.mergePlan(bestVideo, a.AudioOnly[0]), true
		}
	}

	if preferSingleFile && len(a.SingleFile) > 0 && bestSingleLines >= acceptableSingleFileLines {
		e.log.Debug("selecting preferred single-file plan", slog.Int("lines", bestSingleLines))
		return e.singleFilePlan(a.SingleFile[0], false), true
	}

	if len(a.VideoOnly) > 0 && len(a.AudioOnly) > 0 {
		e.log.Debug("selecting merge fallback plan")
		return e.mergePlan(a.VideoOnly[0], a.AudioOnly[0]), true
	}

	if len(a.SingleFile) > 0 {
		e.log.Debug("selecting single-file fallback plan", slog.Int("lines", bestSingleLines))
		return e.singleFilePlan(a.SingleFile[0], true), true
	}

	e.log.Debug("no viable stream combination")
	return SelectionPlan{}, false
}

func (e *Engine) mergePlan(video, audio ScoredStream) SelectionPlan {
	secondary := audio.Stream
	return SelectionPlan{
		Strategy:        StrategyMerge,
		Primary:         video.Stream,
		Secondary:       &secondary,
		EstimatedSizeMB: video.SizeMegabytes + audio.SizeMegabytes,
		QualityLabel:    fmt.Sprintf("%s + %s", videoLabel(video.Stream), audioLabel(audio.Stream)),
		MergeRequired:   true,
	}
}

func (e *Engine) singleFilePlan(s ScoredStream, fallback bool) SelectionPlan {
	label := fmt.Sprintf("%s (single file)", videoLabel(s.Stream))
	if fallback {
		label = fmt.Sprintf("%s (single file, fallback)", videoLabel(s.Stream))
	}
	return SelectionPlan{
		Strategy:        StrategySingleFile,
		Primary:         s.Stream,
		EstimatedSizeMB: s.SizeMegabytes,
		QualityLabel:    label,
		MergeRequired:   false,
	}
}

func videoLabel(d StreamDescriptor) string {
	if d.ResolutionLines <= 0 {
		return "unknown resolution"
	}
	return fmt.Sprintf("%dp", d.ResolutionLines)
}

func audioLabel(d StreamDescriptor) string {
	if d.AudioBitrateKbps <= 0 {
		return "audio"
	}
	return fmt.Sprintf("%dkbps", d.AudioBitrateKbps)
}
