package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/zsiec/avtranscode/internal/media"
)

// Batch is a list of independent jobs.
type Batch struct {
	Jobs []Job `mapstructure:"jobs"`
}

// Job describes one output file.
type Job struct {
	ID         string            `mapstructure:"id"`
	Output     string            `mapstructure:"output"`
	Format     string            `mapstructure:"format"`
	Method     string            `mapstructure:"method"`
	Stream     int               `mapstructure:"based_stream"`
	Duration   float64           `mapstructure:"duration"`
	Metadata   map[string]string `mapstructure:"metadata"`
	Streams    []Stream          `mapstructure:"streams"`
	Generators []Generator       `mapstructure:"generators"`
}

// Stream selects one input stream.
type Stream struct {
	File    string  `mapstructure:"file"`
	Index   int     `mapstructure:"index"`
	Channel *int    `mapstructure:"channel"`
	Profile string  `mapstructure:"profile"`
	Offset  float64 `mapstructure:"offset"`
}

// ChannelOrAll returns the selected channel, or -1 for all of them.
func (s Stream) ChannelOrAll() int {
	if s.Channel == nil {
		return -1
	}
	return *s.Channel
}

// Generator adds a stream of generated frames.
type Generator struct {
	Type    string `mapstructure:"type"`
	Profile string `mapstructure:"profile"`
}

// LoadBatch reads a batch file (yaml, json or toml).
func LoadBatch(path string) (*Batch, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading batch %s: %w: %w", path, media.ErrResource, err)
	}
	var b Batch
	if err := v.Unmarshal(&b); err != nil {
		return nil, fmt.Errorf("config: batch %s: %w: %w", path, media.ErrConfiguration, err)
	}
	for i, j := range b.Jobs {
		if j.Output == "" {
			return nil, fmt.Errorf("config: batch %s: %w: job %d has no output", path, media.ErrConfiguration, i)
		}
		if len(j.Streams) == 0 && len(j.Generators) == 0 {
			return nil, fmt.Errorf("config: batch %s: %w: job %d (%s) has no streams", path, media.ErrConfiguration, i, j.Output)
		}
	}
	return &b, nil
}
