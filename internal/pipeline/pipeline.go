// Package pipeline moves one elementary stream from its input to its output.
// A Pipeline either rewraps packets unchanged or decodes, converts and
// re-encodes frames, and can substitute generated silence or black frames
// for a start offset or for an input that ran out early.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/zsiec/avtranscode/internal/codec"
	"github.com/zsiec/avtranscode/internal/media"
	"github.com/zsiec/avtranscode/internal/output"
	"github.com/zsiec/avtranscode/internal/transform"
)

// State is the processing mode a Pipeline is in.
type State int

const (
	// StateRewrap copies input packets to the output.
	StateRewrap State = iota
	// StateTranscodeInput decodes the input and re-encodes it.
	StateTranscodeInput
	// StateTranscodeGenerator encodes generated frames.
	StateTranscodeGenerator
	// StateDraining flushes packets buffered in the encoder.
	StateDraining
	// StateFinished means nothing more will be written.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateRewrap:
		return "rewrap"
	case StateTranscodeInput:
		return "transcode-input"
	case StateTranscodeGenerator:
		return "transcode-generator"
	case StateDraining:
		return "draining"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Source is the input side of a pipeline. *input.Stream satisfies it.
// Origin is the input time, in seconds, written at output time zero; it is
// shared by every stream of one input so their relative timing survives.
type Source interface {
	ReadNextPacket() (*media.Packet, error)
	Duration() float64
	Origin() float64
}

// Sink is the output side of a pipeline. *output.Stream satisfies it.
type Sink interface {
	Wrap(pkt *media.Packet) (output.WrappingStatus, error)
	Duration() float64
}

// Config assembles a Pipeline from its parts. Input and Decoder are nil for
// a generator-only pipeline; Decoder is nil for a rewrap pipeline. Encoder,
// Generator, Transform, SourceFrame and TargetFrame are nil when no frame
// ever needs encoding.
type Config struct {
	Name        string
	Input       Source
	Sink        Sink
	Decoder     codec.FrameSource
	Generator   codec.FrameSource
	Transform   transform.Transform
	Encoder     codec.Encoder
	SourceFrame *media.Frame
	TargetFrame *media.Frame
	// Offset shifts the input on the output timeline. A positive offset
	// delays it by that many seconds of generated content; a negative one
	// means the input was seeked forward by -Offset. Rewrap pipelines
	// cannot delay their input and drop a positive offset.
	Offset float64
}

// Stats is a point-in-time snapshot of a pipeline's counters.
type Stats struct {
	State           string `json:"state"`
	PacketsRead     int64  `json:"packetsRead"`
	FramesDecoded   int64  `json:"framesDecoded"`
	FramesGenerated int64  `json:"framesGenerated"`
	PacketsWritten  int64  `json:"packetsWritten"`
	Switches        int64  `json:"switches"`
}

// Pipeline processes one stream, one frame per ProcessFrame call. It is not
// safe for concurrent use, except for Stats.
type Pipeline struct {
	log       *slog.Logger
	input     Source
	sink      Sink
	decoder   codec.FrameSource
	generator codec.FrameSource
	transform transform.Transform
	encoder   codec.Encoder
	source    *media.Frame
	target    *media.Frame
	pkt       *media.Packet

	state     State
	offset    float64
	delay     float64
	canSwitch bool

	// rewrap retiming, in rebaseTB units
	rebaseTB media.Rational
	shift    int64

	// encoded packets are shifted by ptsShift (encoder time base)
	ptsShift int64

	packetsRead     atomic.Int64
	framesDecoded   atomic.Int64
	framesGenerated atomic.Int64
	packetsWritten  atomic.Int64
	switches        atomic.Int64
	stateSnapshot   atomic.Int32
}

// New builds a pipeline from cfg. If log is nil, slog.Default() is used.
func New(cfg Config, log *slog.Logger) (*Pipeline, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("pipeline: %w: no output stream", media.ErrConfiguration)
	}
	encodes := cfg.Decoder != nil || cfg.Generator != nil
	if encodes && (cfg.Encoder == nil || cfg.Transform == nil || cfg.SourceFrame == nil || cfg.TargetFrame == nil) {
		return nil, fmt.Errorf("pipeline: %w: encoding needs an encoder, a transform and frames", media.ErrConfiguration)
	}
	if cfg.Input == nil && cfg.Generator == nil {
		return nil, fmt.Errorf("pipeline: %w: no input and no generator", media.ErrConfiguration)
	}
	p := &Pipeline{
		log:       log.With("component", "pipeline", "stream", cfg.Name),
		input:     cfg.Input,
		sink:      cfg.Sink,
		decoder:   cfg.Decoder,
		generator: cfg.Generator,
		transform: cfg.Transform,
		encoder:   cfg.Encoder,
		source:    cfg.SourceFrame,
		target:    cfg.TargetFrame,
		pkt:       media.NewPacket(),
		offset:    cfg.Offset,
	}
	if cfg.Input == nil || (cfg.Decoder == nil && p.offset > 0) {
		p.offset = 0
	}
	p.delay = max(p.offset, 0)
	switch {
	case cfg.Input == nil:
		p.setState(StateTranscodeGenerator)
	case cfg.Decoder == nil:
		p.setState(StateRewrap)
	case p.delay > 0 && cfg.Generator != nil:
		p.setState(StateTranscodeGenerator)
	default:
		p.setState(StateTranscodeInput)
	}
	return p, nil
}

func (p *Pipeline) setState(s State) {
	if p.state != s {
		p.log.Debug("state", "from", p.state, "to", s)
	}
	p.state = s
	p.stateSnapshot.Store(int32(s))
}

// State returns the current processing mode.
func (p *Pipeline) State() State { return p.state }

// SetCanSwitchToGenerator allows the pipeline to continue with generated
// frames once its input is exhausted.
func (p *Pipeline) SetCanSwitchToGenerator(ok bool) { p.canSwitch = ok }

// CanSwitchToGenerator reports whether exhaustion falls back to generated
// frames.
func (p *Pipeline) CanSwitchToGenerator() bool { return p.canSwitch }

// HasGenerator reports whether the pipeline can produce generated frames.
func (p *Pipeline) HasGenerator() bool { return p.generator != nil }

// IsGeneratorOnly reports whether the pipeline has no input.
func (p *Pipeline) IsGeneratorOnly() bool { return p.input == nil }

// Sink returns the output stream the pipeline writes to.
func (p *Pipeline) Sink() Sink { return p.sink }

// Duration is the expected output duration in seconds: the input duration
// plus the offset, or math.MaxFloat64 without an input.
func (p *Pipeline) Duration() float64 {
	if p.input == nil {
		return math.MaxFloat64
	}
	return p.input.Duration() + p.offset
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		State:           State(p.stateSnapshot.Load()).String(),
		PacketsRead:     p.packetsRead.Load(),
		FramesDecoded:   p.framesDecoded.Load(),
		FramesGenerated: p.framesGenerated.Load(),
		PacketsWritten:  p.packetsWritten.Load(),
		Switches:        p.switches.Load(),
	}
}

// PreProcessCodecLatency feeds the encoder as many frames as it holds back
// so the following calls emit one packet each. Rewrap pipelines and
// encoders that already consumed more frames than their latency are left
// alone.
func (p *Pipeline) PreProcessCodecLatency() error {
	if p.state == StateRewrap || p.encoder == nil {
		return nil
	}
	latency := p.encoder.Latency()
	p.log.Debug("codec latency", "frames", latency)
	if latency <= 0 || latency < p.encoder.FrameCount() {
		return nil
	}
	for ; latency > 0; latency-- {
		if _, err := p.ProcessFrame(); err != nil {
			return err
		}
	}
	return nil
}

// ProcessFrame processes one unit of the stream and reports whether the
// pipeline should be called again.
func (p *Pipeline) ProcessFrame() (bool, error) {
	switch p.state {
	case StateRewrap:
		return p.processRewrap()
	case StateTranscodeInput, StateTranscodeGenerator:
		return p.processTranscode()
	case StateDraining:
		return p.processDrain()
	default:
		return false, nil
	}
}

func (p *Pipeline) processRewrap() (bool, error) {
	for {
		pkt, err := p.input.ReadNextPacket()
		if errors.Is(err, io.EOF) {
			if p.canSwitch && p.generator != nil && p.encoder != nil {
				p.switchFromRewrap()
				return p.processTranscode()
			}
			p.log.Debug("end of input")
			p.setState(StateFinished)
			return false, nil
		}
		if err != nil {
			p.setState(StateFinished)
			return false, fmt.Errorf("pipeline: rewrap: %w", err)
		}
		p.packetsRead.Add(1)
		p.retime(pkt)

		status, err := p.wrap(pkt)
		if err != nil {
			return false, err
		}
		if status == output.WrappingSuccess {
			return true, nil
		}
	}
}

// retime moves rewrapped timestamps so the input origin lands at zero.
func (p *Pipeline) retime(pkt *media.Packet) {
	if pkt.TimeBase.IsZero() {
		return
	}
	if pkt.TimeBase != p.rebaseTB {
		p.rebaseTB = pkt.TimeBase
		p.shift = -pkt.TimeBase.FromSeconds(p.input.Origin())
	}
	if p.shift == 0 {
		return
	}
	if pkt.PTS != media.NoPTS {
		pkt.PTS += p.shift
	}
	if pkt.DTS != media.NoPTS {
		pkt.DTS += p.shift
	}
}

// switchFromRewrap continues a rewrapped stream with generated frames that
// start where the rewrapped packets ended.
func (p *Pipeline) switchFromRewrap() {
	end := p.sink.Duration()
	p.ptsShift = p.encoder.Params().TimeBase.FromSeconds(end)
	p.log.Info("input exhausted, switching to generator", "at", end)
	p.switches.Add(1)
	p.setState(StateTranscodeGenerator)
}

func (p *Pipeline) processTranscode() (bool, error) {
	for {
		if p.delay > 0 && p.state == StateTranscodeGenerator && p.sink.Duration() >= p.delay {
			p.log.Debug("end of offset, switching to input", "offset", p.delay)
			p.delay = 0
			p.switches.Add(1)
			p.setState(StateTranscodeInput)
		}

		ok, err := p.nextFrame()
		if err != nil {
			return false, err
		}
		if !ok {
			if p.canSwitch && p.generator != nil && p.state != StateTranscodeGenerator {
				p.log.Info("input exhausted, switching to generator", "at", p.sink.Duration())
				p.switches.Add(1)
				p.setState(StateTranscodeGenerator)
				continue
			}
			p.setState(StateDraining)
			return p.processDrain()
		}

		if err := p.transform.Convert(p.source, p.target); err != nil {
			return false, fmt.Errorf("pipeline: convert: %w", err)
		}
		p.pkt.Reset()
		got, err := p.encoder.Encode(p.target, p.pkt)
		if err != nil {
			return false, fmt.Errorf("pipeline: encode: %w", err)
		}
		if !got {
			return true, nil
		}
		status, err := p.wrapEncoded()
		if err != nil {
			return false, err
		}
		if status == output.WrappingSuccess {
			return true, nil
		}
	}
}

// nextFrame fills the source frame from the current frame source. A decode
// failure ends the input like exhaustion does.
func (p *Pipeline) nextFrame() (bool, error) {
	if p.state == StateTranscodeGenerator {
		ok, err := p.generator.DecodeNextFrame(p.source)
		if err != nil {
			return false, fmt.Errorf("pipeline: generate: %w", err)
		}
		if ok {
			p.framesGenerated.Add(1)
		}
		return ok, nil
	}
	ok, err := p.decoder.DecodeNextFrame(p.source)
	if err != nil {
		p.log.Warn("decoding failed, ending input", "error", err)
		return false, nil
	}
	if ok {
		p.framesDecoded.Add(1)
	}
	return ok, nil
}

func (p *Pipeline) processDrain() (bool, error) {
	for {
		p.pkt.Reset()
		got, err := p.encoder.Flush(p.pkt)
		if err != nil {
			return false, fmt.Errorf("pipeline: flush: %w", err)
		}
		if !got {
			p.log.Debug("encoder drained")
			p.setState(StateFinished)
			return false, nil
		}
		status, err := p.wrapEncoded()
		if err != nil {
			return false, err
		}
		if status == output.WrappingSuccess {
			return true, nil
		}
	}
}

func (p *Pipeline) wrapEncoded() (output.WrappingStatus, error) {
	if p.ptsShift != 0 {
		if p.pkt.PTS != media.NoPTS {
			p.pkt.PTS += p.ptsShift
		}
		if p.pkt.DTS != media.NoPTS {
			p.pkt.DTS += p.ptsShift
		}
	}
	return p.wrap(p.pkt)
}

func (p *Pipeline) wrap(pkt *media.Packet) (output.WrappingStatus, error) {
	status, err := p.sink.Wrap(pkt)
	if err != nil || status == output.WrappingError {
		p.setState(StateFinished)
		if err == nil {
			err = fmt.Errorf("%w: wrapping failed", media.ErrResource)
		}
		return output.WrappingError, fmt.Errorf("pipeline: wrap: %w", err)
	}
	if !pkt.Empty() {
		p.packetsWritten.Add(1)
	}
	return status, nil
}
