package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"mediafetch/internal/selection"
	"mediafetch/internal/source"
)

// Fetcher transfers one stream's bytes to a destination file. It blocks until
// the transfer reaches a terminal state and fails on zero bytes written.
type Fetcher interface {
	Fetch(ctx context.Context, stream selection.StreamDescriptor, destPath string) error
}

// Orchestrator executes selection plans: it downloads the required streams,
// in parallel when two are needed, runs the merge tool when the plan demands
// it, and moves the finished artifact into the output directory. The
// per-operation workspace is removed on every exit path.
type Orchestrator struct {
	fetcher Fetcher
	merger  Merger
	tmpRoot string
	outDir  string
	log     *slog.Logger
}

// NewOrchestrator wires an orchestrator. tmpRoot is where workspaces are
// created ("" means the system temp dir); outDir receives finished artifacts.
func NewOrchestrator(fetcher Fetcher, merger Merger, tmpRoot, outDir string, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher: fetcher,
		merger:  merger,
		tmpRoot: tmpRoot,
		outDir:  outDir,
		log:     log,
	}
}

// Execute runs the plan and returns the path of the finished artifact inside
// the output directory. On failure it returns a *PipelineError and leaves no
// transient state behind.
func (o *Orchestrator) Execute(ctx context.Context, plan selection.SelectionPlan, asset source.AssetInfo) (string, error) {
	switch plan.Strategy {
	case selection.StrategySingleFile, selection.StrategyMerge:
	default:
		return "", pipelineErr(CodeUnknownStrategy, fmt.Sprintf("strategy %q", plan.Strategy), nil)
	}

	if plan.Strategy == selection.StrategyMerge {
		if plan.Secondary == nil {
			return "", pipelineErr(CodeUnknownStrategy, "merge plan without a secondary stream", nil)
		}
		if !o.merger.Available() {
			return "", pipelineErr(CodeToolUnavailable, "merge tool is not installed", nil)
		}
	}

	ws, err := NewWorkspace(o.tmpRoot)
	if err != nil {
		return "", pipelineErr(CodeAcquisitionFailed, "creating workspace", err)
	}
	defer o.removeWorkspace(ws)

	o.log.Debug("workspace created", slog.String("path", ws.Path), slog.String("strategy", string(plan.Strategy)))

	var produced string
	if plan.Strategy == selection.StrategyMerge {
		produced, err = o.acquireAndMerge(ctx, ws, plan)
	} else {
		produced, err = o.acquireSingle(ctx, ws, plan)
	}
	if err != nil {
		return "", err
	}

	artifact, err := o.finalize(produced, plan, asset)
	if err != nil {
		code := CodeAcquisitionFailed
		if plan.Strategy == selection.StrategyMerge {
			code = CodeMergeFailed
		}
		return "", pipelineErr(code, "finalizing artifact", err)
	}

	o.log.Info("artifact ready",
		slog.String("asset", asset.ID),
		slog.String("strategy", string(plan.Strategy)),
		slog.String("path", artifact))
	return artifact, nil
}

// acquireSingle downloads the plan's single muxed stream into the workspace.
func (o *Orchestrator) acquireSingle(ctx context.Context, ws *Workspace, plan selection.SelectionPlan) (string, error) {
	dest := ws.File(outputFinalFile)
	if err := o.fetcher.Fetch(ctx, plan.Primary, dest); err != nil {
		return "", pipelineErr(CodeAcquisitionFailed, fmt.Sprintf("downloading stream %s", plan.Primary.ID), err)
	}
	return dest, nil
}

// acquireAndMerge downloads the video and audio streams concurrently, waits
// for both to reach a terminal state, then invokes the merge tool. If either
// transfer fails the other is allowed to finish, but the merge is skipped and
// the whole operation reports acquisition failure.
func (o *Orchestrator) acquireAndMerge(ctx context.Context, ws *Workspace, plan selection.SelectionPlan) (string, error) {
	videoPath := ws.File(videoTempFile)
	audioPath := ws.File(audioTempFile)

	var wg sync.WaitGroup
	var videoErr, audioErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		videoErr = o.fetcher.Fetch(ctx, plan.Primary, videoPath)
	}()
	go func() {
		defer wg.Done()
		audioErr = o.fetcher.Fetch(ctx, *plan.Secondary, audioPath)
	}()
	wg.Wait()

	if videoErr != nil || audioErr != nil {
		return "", pipelineErr(CodeAcquisitionFailed, "downloading streams", errors.Join(videoErr, audioErr))
	}

	outPath := ws.File(outputFinalFile)
	if err := o.merger.Merge(ctx, videoPath, audioPath, outPath); err != nil {
		return "", pipelineErr(CodeMergeFailed, "merging streams", err)
	}
	return outPath, nil
}

// finalize moves the produced file out of the workspace into the output
// directory under a sanitized, length-capped name derived from the title.
func (o *Orchestrator) finalize(produced string, plan selection.SelectionPlan, asset source.AssetInfo) (string, error) {
	if err := os.MkdirAll(o.outDir, 0o755); err != nil {
		return "", err
	}

	name := SafeFilename(asset.Title, plan.Primary.ID) + "." + ArtifactExtension(plan.Primary.ContainerFormat)
	dest := filepath.Join(o.outDir, name)
	if err := moveFile(produced, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (o *Orchestrator) removeWorkspace(ws *Workspace) {
	if err := ws.Remove(); err != nil {
		o.log.Warn("workspace cleanup failed", slog.String("path", ws.Path), slog.String("error", err.Error()))
	}
}

// moveFile renames src to dst, falling back to copy-and-remove when the two
// paths live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
