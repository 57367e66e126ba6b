// Package config loads the simulator configuration from defaults, an
// optional YAML file, and PAGINGSIM_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/pagingsim/kernel"
	"github.com/sarchlab/pagingsim/logging"
	"github.com/sarchlab/pagingsim/mem/vm"
	"github.com/sarchlab/pagingsim/mem/vm/mmu"
	"github.com/sarchlab/pagingsim/mem/vm/region"
	"github.com/sarchlab/pagingsim/mem/vm/replacement"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "PAGINGSIM_"

// ErrInvalidConfig is returned when a configuration cannot describe a kernel.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config describes a simulated machine and its ambient services.
type Config struct {
	RAMFrames   uint32         `yaml:"ram_frames"`
	SwapFrames  []uint32       `yaml:"swap_frames"`
	TLBEntries  int            `yaml:"tlb_entries"`
	Replacement string         `yaml:"replacement"`
	Fit         string         `yaml:"fit"`
	Log         logging.Config `yaml:"log"`
	Monitor     MonitorConfig  `yaml:"monitor"`
	Record      RecordConfig   `yaml:"record"`
}

// MonitorConfig configures the HTTP monitor.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`
	// Port 0 picks a free port.
	Port int `yaml:"port"`
}

// RecordConfig configures the SQLite event recorder.
type RecordConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path is the database file without extension. Empty generates one.
	Path string `yaml:"path"`
}

// Default returns the configuration of the reference machine.
func Default() *Config {
	return &Config{
		RAMFrames:   64,
		SwapFrames:  []uint32{256},
		TLBEntries:  32,
		Replacement: replacement.FIFO.String(),
		Fit:         region.FirstFit.String(),
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds a configuration from the defaults, the YAML file at path (if
// path is not empty), the given .env files, and the process environment.
// Without env files, a .env file in the working directory is read if present.
// Variables already set in the environment win over .env files.
func Load(path string, envFiles ...string) (*Config, error) {
	c := Default()

	if path != "" {
		if err := c.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(envFiles); err != nil {
		return nil, err
	}

	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode %q: %w", path, err)
	}

	return nil
}

func loadDotEnv(files []string) error {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}

		return nil
	}

	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var err error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	num := func(key string, bits int, set func(uint64)) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || err != nil {
			return
		}

		n, perr := strconv.ParseUint(strings.TrimSpace(v), 10, bits)
		if perr != nil {
			err = fmt.Errorf("%s%s=%q: %w", EnvPrefix, key, v, ErrInvalidConfig)
			return
		}

		set(n)
	}

	num("RAM_FRAMES", 32, func(n uint64) { c.RAMFrames = uint32(n) })
	num("TLB_ENTRIES", 31, func(n uint64) { c.TLBEntries = int(n) })
	num("MONITOR_PORT", 16, func(n uint64) {
		c.Monitor.Port = int(n)
		c.Monitor.Enabled = true
	})
	str("REPLACEMENT", &c.Replacement)
	str("FIT", &c.Fit)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_OUTPUT", &c.Log.OutputFile)

	if v, ok := lookup(EnvPrefix + "RECORD_PATH"); ok {
		c.Record.Path = v
		c.Record.Enabled = true
	}

	if v, ok := lookup(EnvPrefix + "SWAP_FRAMES"); ok && err == nil {
		c.SwapFrames, err = parseFrameList(v)
	}

	return err
}

func parseFrameList(v string) ([]uint32, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}

	var frames []uint32

	for _, field := range strings.Split(v, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(field), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%sSWAP_FRAMES=%q: %w",
				EnvPrefix, v, ErrInvalidConfig)
		}

		frames = append(frames, uint32(n))
	}

	return frames, nil
}

// Validate checks that the configuration describes a buildable kernel.
func (c *Config) Validate() error {
	if c.RAMFrames == 0 || c.RAMFrames > vm.MaxFrameNumber {
		return fmt.Errorf("ram_frames %d outside [1, %d]: %w",
			c.RAMFrames, vm.MaxFrameNumber, ErrInvalidConfig)
	}

	if len(c.SwapFrames) > mmu.MaxSwapDevices {
		return fmt.Errorf("%d swap devices, at most %d: %w",
			len(c.SwapFrames), mmu.MaxSwapDevices, ErrInvalidConfig)
	}

	for i, n := range c.SwapFrames {
		if n == 0 || n > vm.MaxSwapOffset {
			return fmt.Errorf("swap device %d of %d frames: %w",
				i, n, ErrInvalidConfig)
		}
	}

	if c.TLBEntries <= 0 {
		return fmt.Errorf("tlb_entries %d: %w", c.TLBEntries, ErrInvalidConfig)
	}

	if _, err := replacement.ParsePolicy(c.Replacement); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidConfig)
	}

	if _, err := region.ParseFitPolicy(c.Fit); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidConfig)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return fmt.Errorf("monitor port %d: %w", c.Monitor.Port, ErrInvalidConfig)
	}

	return nil
}

// KernelBuilder returns a kernel builder for the configured machine. The
// configuration must be valid.
func (c *Config) KernelBuilder(log *zap.Logger) kernel.Builder {
	policy, err := replacement.ParsePolicy(c.Replacement)
	if err != nil {
		panic(err)
	}

	fit, err := region.ParseFitPolicy(c.Fit)
	if err != nil {
		panic(err)
	}

	return kernel.MakeBuilder().
		WithRAMFrames(c.RAMFrames).
		WithSwapDevices(c.SwapFrames...).
		WithTLBEntries(c.TLBEntries).
		WithReplacementPolicy(policy).
		WithFitPolicy(fit).
		WithLogger(log)
}
