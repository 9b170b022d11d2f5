// Package transcoder drives a transcoding job: it builds one pipeline per
// output stream, shares input files between them and runs the pipelines
// round-robin until the output reaches its expected duration.
package transcoder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/avtranscode/internal/input"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/output"
	"github.com/zsiec/avtranscode/internal/pipeline"
	"github.com/zsiec/avtranscode/internal/profile"
)

// ProcessMethod decides when a job is complete.
type ProcessMethod int

const (
	// ProcessShortest stops once the shortest stream ends.
	ProcessShortest ProcessMethod = iota
	// ProcessLongest extends shorter streams with generated content until
	// the longest ends.
	ProcessLongest
	// ProcessBasedOnStream stops once a chosen stream ends; the others are
	// extended or cut.
	ProcessBasedOnStream
	// ProcessBasedOnDuration stops at a fixed output duration; every stream
	// is extended.
	ProcessBasedOnDuration
)

var methodNames = map[ProcessMethod]string{
	ProcessShortest:        "shortest",
	ProcessLongest:         "longest",
	ProcessBasedOnStream:   "stream",
	ProcessBasedOnDuration: "duration",
}

func (m ProcessMethod) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("ProcessMethod(%d)", int(m))
}

// ParseProcessMethod parses shortest, longest, stream or duration.
func ParseProcessMethod(s string) (ProcessMethod, error) {
	for m, name := range methodNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("transcoder: %w: unknown process method %q", media.ErrConfiguration, s)
}

// InputStreamDesc selects one input stream and how to process it.
type InputStreamDesc struct {
	Filename    string
	StreamIndex int
	// Channel extracts one channel of an audio stream; -1 keeps all.
	Channel int
	// Profile encodes the stream; nil rewraps it.
	Profile profile.Profile
	// Offset delays the stream by generated content when positive and
	// skips into the input when negative.
	Offset float64
}

// Progress reports how far a job got. Returning false from a
// ProgressFunc stops the job.
type Progress struct {
	Processed float64 `json:"processed"`
	Total     float64 `json:"total"`
}

// ProgressFunc is called after every processing round.
type ProgressFunc func(Progress) bool

// StreamStat describes one output stream after processing.
type StreamStat struct {
	Index    int            `json:"index"`
	Duration float64        `json:"duration"`
	Frames   int            `json:"frames"`
	Pipeline pipeline.Stats `json:"pipeline"`
}

// ProcessStat summarises a finished job.
type ProcessStat struct {
	ID       string        `json:"id"`
	Output   string        `json:"output"`
	Method   string        `json:"method"`
	Duration float64       `json:"duration"`
	Elapsed  time.Duration `json:"elapsed"`
	Streams  []StreamStat  `json:"streams"`
}

// Transcoder is one job writing a single output file. It is not safe for
// concurrent use.
type Transcoder struct {
	id     string
	log    *slog.Logger
	out    *output.File
	loader *profile.Loader

	inputs     map[string]*input.File
	inputOrder []*input.File
	pipelines  []*pipeline.Pipeline
	finished   []bool

	method         ProcessMethod
	basedStream    int
	outputDuration float64
}

// New creates a job writing to out. Profiles named in Add are looked up in
// loader. If log is nil, slog.Default() is used.
func New(out *output.File, loader *profile.Loader, log *slog.Logger) *Transcoder {
	if log == nil {
		log = slog.Default()
	}
	if loader == nil {
		loader = profile.NewLoader(log)
	}
	id := uuid.NewString()
	return &Transcoder{
		id:     id,
		log:    log.With("component", "transcoder", "job", id),
		out:    out,
		loader: loader,
		inputs: make(map[string]*input.File),
		method: ProcessShortest,
	}
}

// ID returns the job identifier.
func (t *Transcoder) ID() string { return t.id }

// Output returns the file the job writes.
func (t *Transcoder) Output() *output.File { return t.out }

// AddInput registers an already opened input so streams added for its
// filename reuse it.
func (t *Transcoder) AddInput(f *input.File) {
	if _, ok := t.inputs[f.Filename()]; ok {
		return
	}
	t.inputs[f.Filename()] = f
	t.inputOrder = append(t.inputOrder, f)
}

func (t *Transcoder) openInput(ctx context.Context, filename string) (*input.File, error) {
	if f, ok := t.inputs[filename]; ok {
		return f, nil
	}
	f, err := input.Open(ctx, filename, t.log)
	if err != nil {
		return nil, fmt.Errorf("transcoder: %w", err)
	}
	t.AddInput(f)
	return f, nil
}

// Add adds a stream of filename, rewrapped when profileName is empty and
// encoded with the named profile otherwise.
func (t *Transcoder) Add(ctx context.Context, filename string, streamIndex int, profileName string, offset float64) error {
	desc := InputStreamDesc{Filename: filename, StreamIndex: streamIndex, Channel: -1, Offset: offset}
	if profileName != "" {
		p, err := t.loader.Get(profileName)
		if err != nil {
			return fmt.Errorf("transcoder: %w", err)
		}
		desc.Profile = p
	}
	return t.AddStream(ctx, desc)
}

// AddStream adds the stream described by desc.
func (t *Transcoder) AddStream(ctx context.Context, desc InputStreamDesc) error {
	f, err := t.openInput(ctx, desc.Filename)
	if err != nil {
		return err
	}
	offset := desc.Offset
	if offset < 0 {
		if err := f.SeekAtTime(-offset); err != nil {
			return fmt.Errorf("transcoder: %w", err)
		}
	}
	if err := f.ActivateStream(desc.StreamIndex, true); err != nil {
		return fmt.Errorf("transcoder: %w", err)
	}
	s, err := f.Stream(desc.StreamIndex)
	if err != nil {
		return fmt.Errorf("transcoder: %w", err)
	}

	prof := desc.Profile
	if prof == nil && desc.Channel >= 0 {
		prof = channelProfile(s.Params())
	}

	var p *pipeline.Pipeline
	if prof == nil {
		if offset > 0 {
			t.log.Warn("offset ignored for rewrapped stream", "file", desc.Filename, "stream", desc.StreamIndex, "offset", offset)
		}
		p, err = pipeline.NewRewrap(s, t.out, offset, t.log)
	} else {
		p, err = pipeline.NewTranscode(s, t.out, prof, pipeline.TranscodeOptions{Offset: offset, SubStream: desc.Channel}, t.log)
	}
	if err != nil {
		return fmt.Errorf("transcoder: %s stream %d: %w", desc.Filename, desc.StreamIndex, err)
	}
	t.addPipeline(p)
	t.log.Info("stream added", "file", desc.Filename, "stream", desc.StreamIndex,
		"channel", desc.Channel, "profile", prof.Name(), "offset", desc.Offset)
	return nil
}

// channelProfile keeps the codec of a stream while extracting one channel.
func channelProfile(params media.CodecParams) profile.Profile {
	return profile.Profile{
		profile.KeyName:     "channel-" + params.Codec,
		profile.KeyLongName: "single channel " + params.Codec,
		profile.KeyType:     params.Type.String(),
		profile.KeyCodec:    params.Codec,
		profile.KeyChannels: "1",
	}
}

// AddGenerator adds a stream of generated frames shaped by params and
// encoded with the named profile, or with params.Codec when profileName is
// empty.
func (t *Transcoder) AddGenerator(params media.CodecParams, profileName string) error {
	var prof profile.Profile
	if profileName != "" {
		p, err := t.loader.Get(profileName)
		if err != nil {
			return fmt.Errorf("transcoder: %w", err)
		}
		prof = p
	}
	p, err := pipeline.NewGenerator(params, t.out, prof, t.log)
	if err != nil {
		return fmt.Errorf("transcoder: generator: %w", err)
	}
	t.addPipeline(p)
	t.log.Info("generator added", "type", params.Type, "profile", prof.Name())
	return nil
}

func (t *Transcoder) addPipeline(p *pipeline.Pipeline) {
	t.pipelines = append(t.pipelines, p)
	t.finished = append(t.finished, false)
}

// NbStreams returns the number of output streams.
func (t *Transcoder) NbStreams() int { return len(t.pipelines) }

// SetProcessMethod chooses when the job completes. basedStream is used by
// ProcessBasedOnStream and outputDuration by ProcessBasedOnDuration.
func (t *Transcoder) SetProcessMethod(m ProcessMethod, basedStream int, outputDuration float64) {
	t.method = m
	t.basedStream = basedStream
	t.outputDuration = outputDuration
}

// StreamDuration returns the expected duration of output stream i.
func (t *Transcoder) StreamDuration(i int) (float64, error) {
	if i < 0 || i >= len(t.pipelines) {
		return 0, fmt.Errorf("transcoder: %w: no stream %d", media.ErrConfiguration, i)
	}
	return t.pipelines[i].Duration(), nil
}

// TotalDuration returns the output duration the process method aims for.
func (t *Transcoder) TotalDuration() (float64, error) {
	if len(t.pipelines) == 0 {
		return 0, fmt.Errorf("transcoder: %w: no stream to process", media.ErrConfiguration)
	}
	var d float64
	switch t.method {
	case ProcessShortest:
		d = math.MaxFloat64
		for _, p := range t.pipelines {
			d = min(d, p.Duration())
		}
	case ProcessLongest:
		for _, p := range t.pipelines {
			if !p.IsGeneratorOnly() {
				d = max(d, p.Duration())
			}
		}
		if d == 0 {
			d = math.MaxFloat64
		}
	case ProcessBasedOnStream:
		sd, err := t.StreamDuration(t.basedStream)
		if err != nil {
			return 0, err
		}
		d = sd
	case ProcessBasedOnDuration:
		if t.outputDuration <= 0 {
			return 0, fmt.Errorf("transcoder: %w: output duration must be positive", media.ErrConfiguration)
		}
		d = t.outputDuration
	default:
		return 0, fmt.Errorf("transcoder: %w: %s", media.ErrConfiguration, t.method)
	}
	if d == math.MaxFloat64 {
		return 0, fmt.Errorf("transcoder: %w: %s processing of generated streams never ends", media.ErrConfiguration, t.method)
	}
	return d, nil
}

// manageSwitchToGenerator decides which pipelines may outlast their input.
func (t *Transcoder) manageSwitchToGenerator(total float64) {
	for i, p := range t.pipelines {
		switch t.method {
		case ProcessShortest:
			p.SetCanSwitchToGenerator(false)
		case ProcessLongest:
			p.SetCanSwitchToGenerator(p.Duration() != total)
		case ProcessBasedOnStream:
			p.SetCanSwitchToGenerator(i != t.basedStream)
		case ProcessBasedOnDuration:
			p.SetCanSwitchToGenerator(true)
		}
	}
}

// ProcessFrame runs one round over the unfinished pipelines and reports
// whether any of them is still running.
func (t *Transcoder) ProcessFrame() (bool, error) {
	running := false
	for i, p := range t.pipelines {
		if t.finished[i] {
			continue
		}
		more, err := p.ProcessFrame()
		if err != nil {
			return false, fmt.Errorf("transcoder: stream %d: %w", i, err)
		}
		if !more {
			t.finished[i] = true
			t.log.Debug("stream finished", "stream", i, "duration", p.Sink().Duration())
			continue
		}
		running = true
	}
	return running, nil
}

// Process runs the job to completion and closes the output. The context
// is checked between rounds.
func (t *Transcoder) Process(ctx context.Context, progress ProgressFunc) (*ProcessStat, error) {
	total, err := t.TotalDuration()
	if err != nil {
		return nil, err
	}
	t.manageSwitchToGenerator(total)

	start := time.Now()
	t.log.Info("process started", "method", t.method, "streams", len(t.pipelines), "duration", total)
	if err := t.out.BeginWrap(); err != nil {
		return nil, fmt.Errorf("transcoder: %w", err)
	}
	for i, p := range t.pipelines {
		if err := p.PreProcessCodecLatency(); err != nil {
			t.abort()
			return nil, fmt.Errorf("transcoder: stream %d: %w", i, err)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			t.abort()
			return nil, err
		}
		running, err := t.ProcessFrame()
		if err != nil {
			t.abort()
			return nil, err
		}
		processed := t.out.Duration()
		if progress != nil && !progress(Progress{Processed: processed, Total: total}) {
			t.log.Info("process stopped by caller", "processed", processed)
			break
		}
		if t.done(running, processed, total) {
			break
		}
	}

	if err := t.out.EndWrap(); err != nil {
		return nil, fmt.Errorf("transcoder: %w", err)
	}
	stat := t.stat(time.Since(start))
	t.log.Info("process finished", "duration", stat.Duration, "elapsed", stat.Elapsed)
	return stat, nil
}

// done reports whether the job reached its end: every pipeline finished,
// the output reached the total duration, or the streams the method waits
// for have ended.
func (t *Transcoder) done(running bool, processed, total float64) bool {
	if !running || processed >= total {
		return true
	}
	switch t.method {
	case ProcessShortest:
		for _, f := range t.finished {
			if f {
				return true
			}
		}
	case ProcessLongest, ProcessBasedOnStream:
		for i, p := range t.pipelines {
			if !p.CanSwitchToGenerator() && !t.finished[i] {
				return false
			}
		}
		return true
	}
	return false
}

func (t *Transcoder) abort() {
	if err := t.out.EndWrap(); err != nil {
		t.log.Warn("closing output after failure", "error", err)
	}
}

func (t *Transcoder) stat(elapsed time.Duration) *ProcessStat {
	stat := &ProcessStat{
		ID:       t.id,
		Output:   t.out.Filename(),
		Method:   t.method.String(),
		Duration: t.out.Duration(),
		Elapsed:  elapsed,
	}
	for i, p := range t.pipelines {
		s, _ := t.out.Stream(i)
		stat.Streams = append(stat.Streams, StreamStat{
			Index:    i,
			Duration: s.Duration(),
			Frames:   s.NbFrames(),
			Pipeline: p.Stats(),
		})
	}
	return stat
}

// Close releases the inputs and the output.
func (t *Transcoder) Close() error {
	var firstErr error
	for _, f := range t.inputOrder {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("transcoder: %w", err)
		}
	}
	t.inputOrder = nil
	clear(t.inputs)
	if err := t.out.EndWrap(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
