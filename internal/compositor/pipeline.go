package compositor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bpotrovita1998-maker/vinci-forge-90-sub002/internal/models"
)

// The filter pipeline is built as explicit typed stages and compiled to an
// ffmpeg filtergraph in one place, so scene ordering and transition math stay
// testable without running ffmpeg.

type TrimStage struct {
	Input int
	Start float64
	End   float64
}

func (t TrimStage) Duration() float64 {
	return t.End - t.Start
}

// TransitionStage describes the boundary between segment i and i+1.
type TransitionStage struct {
	Type     models.TransitionType
	Duration float64
}

type EncodeStage struct {
	Preset string
	CRF    int
}

type Pipeline struct {
	Trims       []TrimStage
	Transitions []TransitionStage
	Encode      EncodeStage
}

// BuildPipeline turns resolved scenes into a pipeline. Scenes are sorted by
// scene order first; arrival order of the underlying generations is
// irrelevant here. Single-scene jobs never reach the compositor.
func BuildPipeline(scenes []*models.SceneSpec, encode EncodeStage) (*Pipeline, error) {
	if len(scenes) < 2 {
		return nil, fmt.Errorf("pipeline requires at least 2 scenes, got %d", len(scenes))
	}

	ordered := make([]*models.SceneSpec, len(scenes))
	copy(ordered, scenes)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].SceneOrder < ordered[j].SceneOrder
	})

	p := &Pipeline{Encode: encode}
	for i, scene := range ordered {
		if !scene.OutputURL.Valid {
			return nil, fmt.Errorf("scene %d has no resolved media", scene.SceneOrder)
		}
		p.Trims = append(p.Trims, TrimStage{
			Input: i,
			Start: scene.TrimStart,
			End:   scene.TrimEnd,
		})
		if i < len(ordered)-1 {
			p.Transitions = append(p.Transitions, TransitionStage{
				Type:     scene.TransitionType,
				Duration: scene.TransitionDuration,
			})
		}
	}
	return p, nil
}

// CompileFilterGraph emits the -filter_complex expression and the label of
// the final video stream. Every trimmed segment is normalized with setpts so
// concatenation and xfade offsets line up.
func (p *Pipeline) CompileFilterGraph() (string, string) {
	var sb strings.Builder

	for i, trim := range p.Trims {
		fmt.Fprintf(&sb, "[%d:v]trim=start=%g:end=%g,setpts=PTS-STARTPTS[v%d];",
			trim.Input, trim.Start, trim.End, i)
	}

	acc := "v0"
	accDur := p.Trims[0].Duration()
	for i, tr := range p.Transitions {
		next := fmt.Sprintf("v%d", i+1)
		out := fmt.Sprintf("m%d", i)
		nextDur := p.Trims[i+1].Duration()

		switch tr.Type {
		case models.TransitionDissolve, models.TransitionWipe:
			// Cross-blend over the window: both clips overlap, so the
			// accumulated duration grows by the next clip minus the window.
			fmt.Fprintf(&sb, "[%s][%s]xfade=transition=%s:duration=%g:offset=%g[%s];",
				acc, next, xfadeName(tr.Type), tr.Duration, accDur-tr.Duration, out)
			accDur += nextDur - tr.Duration
		case models.TransitionFade:
			// Independent fade-out of the leading clip and fade-in of the
			// trailing one; no overlap, plain concat afterwards.
			fadedAcc := fmt.Sprintf("f%da", i)
			fadedNext := fmt.Sprintf("f%db", i)
			fmt.Fprintf(&sb, "[%s]fade=t=out:st=%g:d=%g[%s];",
				acc, accDur-tr.Duration, tr.Duration, fadedAcc)
			fmt.Fprintf(&sb, "[%s]fade=t=in:st=0:d=%g[%s];",
				next, tr.Duration, fadedNext)
			fmt.Fprintf(&sb, "[%s][%s]concat=n=2:v=1:a=0[%s];", fadedAcc, fadedNext, out)
			accDur += nextDur
		default:
			fmt.Fprintf(&sb, "[%s][%s]concat=n=2:v=1:a=0[%s];", acc, next, out)
			accDur += nextDur
		}
		acc = out
	}

	graph := strings.TrimSuffix(sb.String(), ";")
	return graph, acc
}

// Args assembles the full ffmpeg argument list for the compiled pipeline.
// Audio is dropped on purpose: source clips are frequently silent and a
// missing audio track would fail the concat otherwise.
func (p *Pipeline) Args(inputs []string, outputPath string) []string {
	graph, finalLabel := p.CompileFilterGraph()

	var args []string
	for _, input := range inputs {
		args = append(args, "-i", input)
	}
	args = append(args,
		"-filter_complex", graph,
		"-map", "["+finalLabel+"]",
		"-an",
		"-c:v", "libsvtav1",
		"-preset", p.Encode.Preset,
		"-crf", fmt.Sprintf("%d", p.Encode.CRF),
		"-movflags", "+faststart",
		"-y", outputPath,
	)
	return args
}

func xfadeName(t models.TransitionType) string {
	switch t {
	case models.TransitionWipe:
		return "wipeleft"
	default:
		return "dissolve"
	}
}
