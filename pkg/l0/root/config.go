package root

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/servotree/pkg/l0/bus"
	"github.com/robotalks/servotree/pkg/l0/discovery"
	"github.com/robotalks/servotree/pkg/l0/router"
)

// ConfigEnv names a YAML file overriding the defaults.
const ConfigEnv = "SERVOTREE_CONFIG"

// Config defines the root controller.
type Config struct {
	Bus       bus.Config       `yaml:"bus"`
	Discovery discovery.Config `yaml:"discovery"`
	// RecoverTicks is waited between attempts to bring an offline bus back.
	RecoverTicks uint32 `yaml:"recover_ticks"`
	// ModuleType is the type character replied for the root.
	ModuleType string `yaml:"module_type"`
	// TracePath is the file bus events are appended to, empty disables tracing.
	TracePath string `yaml:"trace_path"`
}

var defaultConfig = Config{
	Bus:          bus.DefaultConfig(),
	Discovery:    discovery.DefaultConfig(),
	RecoverTicks: 1000,
	ModuleType:   string(router.DefaultModuleType),
}

func init() {
	if path := os.Getenv(ConfigEnv); path != "" {
		if err := LoadFile(path, &defaultConfig); err != nil {
			glog.Errorf("%s: %v", ConfigEnv, err)
		}
	}
}

// LoadFile overrides conf with the YAML file at path.
func LoadFile(path string, conf *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, conf); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

type ticksValue struct {
	v *uint32
}

func (t ticksValue) String() string {
	if t.v == nil {
		return "0"
	}
	return strconv.FormatUint(uint64(*t.v), 10)
}

func (t ticksValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	*t.v = uint32(n)
	return nil
}

// SetupFlags sets command line flags.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine, &defaultConfig)
}

// SetupFlagSet registers a flag for every field of conf on fs.
func SetupFlagSet(fs *flag.FlagSet, conf *Config) {
	fs.Func("branches", "Number of receive branches (1 or 4)", func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		return conf.SetBranches(n)
	})
	fs.DurationVar(&conf.Bus.TickPeriod, "tick", conf.Bus.TickPeriod, "Timer tick period")
	fs.Var(ticksValue{&conf.Bus.RxTimeoutTicks}, "rx-timeout", "Receive window in ticks")
	fs.Var(ticksValue{&conf.Bus.SettleTicks}, "settle", "Ticks waited after entering a transmitting mode")
	fs.Var(ticksValue{&conf.Bus.TxGuardTicks}, "tx-guard", "Ticks waited after a transmit completes")
	fs.Var(ticksValue{&conf.Bus.TxTimeoutTicks}, "tx-timeout", "Transmit complete timeout in ticks")
	fs.IntVar(&conf.Discovery.MaxTimeouts, "max-timeouts", conf.Discovery.MaxTimeouts, "Silent windows ending a discovery pass")
	fs.IntVar(&conf.Discovery.MaxModules, "max-modules", conf.Discovery.MaxModules, "Maximum number of modules")
	fs.IntVar(&conf.Discovery.PingRetries, "ping-retries", conf.Discovery.PingRetries, "Pings confirming an address")
	fs.Var(ticksValue{&conf.Discovery.InitWaitTicks}, "init-wait", "Ticks waited after a silent window while no module is known")
	fs.IntVar(&conf.Discovery.ListenAttempts, "listen-attempts", conf.Discovery.ListenAttempts, "Hellos sent looking for the child branch")
	fs.Var(ticksValue{&conf.Discovery.QuietTicks}, "quiet", "Silent ticks meaning the single branch is idle")
	fs.Var(ticksValue{&conf.Discovery.BootTimeoutTicks}, "boot-timeout", "Ticks bounding the wait for an idle branch")
	fs.Var(ticksValue{&conf.RecoverTicks}, "recover", "Ticks between recovery attempts")
	fs.StringVar(&conf.ModuleType, "module-type", conf.ModuleType, "Type character of the root")
	fs.StringVar(&conf.TracePath, "trace", conf.TracePath, "Append bus events to file")
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// SetBranches selects the topology by its branch count.
func (c *Config) SetBranches(n int) error {
	switch n {
	case 1:
		c.Bus.Topology = bus.SingleTopology
	case bus.TreeTopology.Branches:
		c.Bus.Topology = bus.TreeTopology
	default:
		return fmt.Errorf("invalid branch count %d", n)
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	t := c.Bus.Topology
	if t != bus.SingleTopology && t != bus.TreeTopology {
		return fmt.Errorf("invalid topology %d branches %d end markers", t.Branches, t.EndMarkers)
	}
	if len(c.ModuleType) != 1 {
		return fmt.Errorf("module type must be a single character, got %q", c.ModuleType)
	}
	if c.Discovery.MaxModules < 1 || c.Discovery.MaxModules > discovery.DefaultConfig().MaxModules {
		return fmt.Errorf("max modules %d out of range", c.Discovery.MaxModules)
	}
	return nil
}
