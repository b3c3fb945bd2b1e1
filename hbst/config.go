package hbst

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds tree parameters. It is fixed for the lifetime of a tree.
type Config struct {
	DescriptorBits   int               `yaml:"descriptor_bits"`    // descriptor width, default 256
	SplitThreshold   uint64            `yaml:"split_threshold"`    // minimum leaf size before splitting, default 100
	MaxDepth         int               `yaml:"max_depth"`          // default DescriptorBits
	MaxPartitioning  float64           `yaml:"max_partitioning"`   // accepted |0.5 - set fraction| bound, default 0.1
	MergeDescriptors bool              `yaml:"merge_descriptors"`  // absorb near-identical descriptors on insertion
	MaxMergeDistance uint32            `yaml:"max_merge_distance"` // default 0 (identical descriptors only)
	Seed             int64             `yaml:"seed"`               // seed for SplitRandomUniform
	Strategy         SplittingStrategy `yaml:"strategy"`           // default strategy for callers loading a config file
	MatchDistance    uint32            `yaml:"match_distance"`     // default matching threshold for callers, default 25

	Logger  logrus.FieldLogger `yaml:"-"`
	Metrics *Metrics           `yaml:"-"` // optional Prometheus collectors
}

// DefaultConfig returns the default configuration. MaxDepth is left 0 so that OrDefault
// sets it to the descriptor width.
func DefaultConfig() *Config {
	return &Config{
		DescriptorBits:  256,
		SplitThreshold:  100,
		MaxPartitioning: 0.1,
		Strategy:        SplitEven,
		MatchDistance:   25,
	}
}

// OrDefault returns DefaultConfig if c is nil, otherwise normalizes c.
func (c *Config) OrDefault() *Config {
	if c == nil {
		c = DefaultConfig()
	}
	if c.DescriptorBits == 0 {
		c.DescriptorBits = 256
	}
	if c.SplitThreshold == 0 {
		c.SplitThreshold = 100
	}
	if c.MaxDepth <= 0 || c.MaxDepth > c.DescriptorBits {
		c.MaxDepth = c.DescriptorBits
	}
	if c.MaxPartitioning <= 0 {
		c.MaxPartitioning = 0.1
	}
	if c.MatchDistance == 0 {
		c.MatchDistance = 25
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// Validate rejects configurations a tree cannot be built with.
func (c *Config) Validate() error {
	if c.DescriptorBits <= 0 || c.DescriptorBits%8 != 0 {
		return errors.Wrapf(ErrInvalidDescriptorWidth, "%d bits", c.DescriptorBits)
	}
	if c.MaxPartitioning > 0.5 {
		return errors.Errorf("hbst: max partitioning %g out of range (0, 0.5]", c.MaxPartitioning)
	}
	if c.MergeDescriptors && c.MaxMergeDistance >= c.MatchDistance {
		return errors.Errorf("hbst: max merge distance %d must be below match distance %d",
			c.MaxMergeDistance, c.MatchDistance)
	}
	return checkStrategy(c.Strategy)
}

// LoadConfig reads a YAML configuration file using strict parsing, starting from defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg.OrDefault(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open hbst config")
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "YAML syntax error in hbst config")
	}
	cfg = cfg.OrDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
