package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zsiec/avtranscode/internal/config"
	"github.com/zsiec/avtranscode/internal/job"
	"github.com/zsiec/avtranscode/internal/output"
	"github.com/zsiec/avtranscode/internal/profile"
	"github.com/zsiec/avtranscode/internal/transcoder"
)

type transcodeOptions struct {
	output     string
	format     string
	streams    []string
	generators []string
	method     string
	based      int
	duration   float64
	metadata   []string
}

func newTranscodeCommand(a *app) *cobra.Command {
	opts := &transcodeOptions{}

	cmd := &cobra.Command{
		Use:   "transcode",
		Short: "Build an output file from input streams",
		Example: `  avtranscode transcode -o out.wav -s in.wav#0
  avtranscode transcode -o out.wav -s in.ts#1=wave16b48kmono@2 -s in.ts#2.0=wave16b48kmono
  avtranscode transcode -o out.mkv -s in.wav#0 -g video=rawvideo_pal --method longest
  avtranscode transcode -o silence.wav -g audio=wave24b48kstereo --method duration --duration 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := opts.job()
			if err != nil {
				return err
			}
			stat, err := runJob(cmd.Context(), j, a.loader, job.NewManager(a.log), a.log)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stat)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Output file; its extension selects the container")
	flags.StringVarP(&opts.format, "format", "f", "", "Format profile applied to the output")
	flags.StringArrayVarP(&opts.streams, "stream", "s", nil, "Input stream FILE#INDEX[.CHANNEL][=PROFILE][@OFFSET]; no profile rewraps")
	flags.StringArrayVarP(&opts.generators, "generator", "g", nil, "Generated stream TYPE[=PROFILE], TYPE is audio or video")
	flags.StringVar(&opts.method, "method", "shortest", "When to stop: shortest, longest, stream or duration")
	flags.IntVar(&opts.based, "based-stream", 0, "Output stream the stream method follows")
	flags.Float64Var(&opts.duration, "duration", 0, "Output duration in seconds for the duration method")
	flags.StringArrayVar(&opts.metadata, "metadata", nil, "Container tag KEY=VALUE")
	_ = cmd.MarkFlagRequired("output")

	_ = cmd.RegisterFlagCompletionFunc("method", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"shortest", "longest", "stream", "duration"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// job turns the flags into a job description.
func (o *transcodeOptions) job() (config.Job, error) {
	j := config.Job{
		Output:   o.output,
		Format:   o.format,
		Method:   o.method,
		Stream:   o.based,
		Duration: o.duration,
		Metadata: make(map[string]string),
	}
	for _, spec := range o.streams {
		s, err := parseStreamSpec(spec)
		if err != nil {
			return j, err
		}
		j.Streams = append(j.Streams, s)
	}
	for _, spec := range o.generators {
		g, err := parseGeneratorSpec(spec)
		if err != nil {
			return j, err
		}
		j.Generators = append(j.Generators, g)
	}
	for _, kv := range o.metadata {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return j, fmt.Errorf("invalid metadata %q, expected KEY=VALUE", kv)
		}
		j.Metadata[k] = v
	}
	if len(j.Streams) == 0 && len(j.Generators) == 0 {
		return j, fmt.Errorf("nothing to transcode: add --stream or --generator")
	}
	return j, nil
}

// runJob executes one job description and records its progress in mgr.
func runJob(ctx context.Context, j config.Job, loader *profile.Loader, mgr *job.Manager, log *slog.Logger) (*transcoder.ProcessStat, error) {
	if log == nil {
		log = slog.Default()
	}
	out, err := output.Create(ctx, j.Output, log)
	if err != nil {
		return nil, err
	}
	tc := transcoder.New(out, loader, log)
	defer func() {
		if err := tc.Close(); err != nil {
			log.Warn("closing job", "output", j.Output, "error", err)
		}
	}()

	if j.Format != "" {
		p, err := loader.Get(j.Format)
		if err != nil {
			return nil, err
		}
		if err := out.SetupWrapping(p); err != nil {
			return nil, err
		}
	}
	for k, v := range j.Metadata {
		out.AddMetadata(k, v)
	}

	for _, s := range j.Streams {
		desc := transcoder.InputStreamDesc{
			Filename:    s.File,
			StreamIndex: s.Index,
			Channel:     s.ChannelOrAll(),
			Offset:      s.Offset,
		}
		if s.Profile != "" {
			p, err := loader.Get(s.Profile)
			if err != nil {
				return nil, err
			}
			desc.Profile = p
		}
		if err := tc.AddStream(ctx, desc); err != nil {
			return nil, err
		}
	}
	for _, g := range j.Generators {
		params, err := generatorParams(g.Type)
		if err != nil {
			return nil, err
		}
		if err := tc.AddGenerator(params, g.Profile); err != nil {
			return nil, err
		}
	}

	method := transcoder.ProcessShortest
	if j.Method != "" {
		if method, err = transcoder.ParseProcessMethod(j.Method); err != nil {
			return nil, err
		}
	}
	tc.SetProcessMethod(method, j.Stream, j.Duration)

	id := j.ID
	if id == "" {
		id = tc.ID()
	}
	entry, ok := mgr.Create(id, j.Output)
	if !ok {
		return nil, fmt.Errorf("job %q is already running", id)
	}
	stat, err := tc.Process(ctx, func(p transcoder.Progress) bool {
		entry.Update(p.Processed, p.Total)
		return true
	})
	switch {
	case ctx.Err() != nil:
		mgr.Finish(id, job.StateCanceled, err)
	case err != nil:
		mgr.Finish(id, job.StateFailed, err)
	default:
		mgr.Finish(id, job.StateDone, nil)
	}
	return stat, err
}
