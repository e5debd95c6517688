package quartz

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Config covers every recognized scheduler configuration option.
// Properties-file/XML bootstrap is out of scope, so this stays a plain
// struct with functional options rather than a generic file-format
// loader; FromProperties exists only to let a caller feed in a flat
// map[string]string built however it likes (env vars, a hand-parsed
// file, a flag set).
type Config struct {
	// InstanceName is scheduler.instanceName: a logical name surfaced
	// in SchedulerMetaData.
	InstanceName string

	// InstanceId is scheduler.instanceId. "AUTO" (the default) means
	// generate one at construction time.
	InstanceId string

	// IdleWaitTime is scheduler.idleWaitTime: the maximum time the
	// scheduler thread sleeps between empty acquisition passes.
	IdleWaitTime time.Duration

	// BatchTriggerAcquisitionMaxCount is
	// scheduler.batchTriggerAcquisitionMaxCount.
	BatchTriggerAcquisitionMaxCount int

	// BatchTriggerAcquisitionFireAheadTimeWindow is
	// scheduler.batchTriggerAcquisitionFireAheadTimeWindow.
	BatchTriggerAcquisitionFireAheadTimeWindow time.Duration

	// MakeSchedulerThreadDaemon mirrors
	// scheduler.makeSchedulerThreadDaemon. Go has no daemon-thread
	// concept; the scheduler goroutine never blocks process exit
	// regardless, so this is carried for config-surface parity only.
	MakeSchedulerThreadDaemon bool

	// ThreadCount is threadPool.threadCount: the worker pool size.
	ThreadCount int

	// ThreadPriority is threadPool.threadPriority. Go's scheduler has
	// no per-goroutine priority; carried for config-surface parity.
	ThreadPriority int

	// MisfireThreshold is jobStore.misfireThreshold.
	MisfireThreshold time.Duration
}

const (
	defaultIdleWaitTime     = 30 * time.Second
	defaultBatchMaxCount    = 1
	defaultMisfireThreshold = 5 * time.Second
	defaultThreadCount      = 10
	autoInstanceId          = "AUTO"
)

// NewConfig builds a Config with the documented defaults, then
// applies opts.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		InstanceName:     "QuartzScheduler",
		InstanceId:       autoInstanceId,
		IdleWaitTime:     defaultIdleWaitTime,
		BatchTriggerAcquisitionMaxCount: defaultBatchMaxCount,
		ThreadCount:      defaultThreadCount,
		MisfireThreshold: defaultMisfireThreshold,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

type Option func(*Config)

func WithInstanceName(name string) Option {
	return func(c *Config) { c.InstanceName = name }
}

func WithInstanceId(id string) Option {
	return func(c *Config) { c.InstanceId = id }
}

func WithIdleWaitTime(d time.Duration) Option {
	return func(c *Config) { c.IdleWaitTime = d }
}

func WithBatchTriggerAcquisitionMaxCount(n int) Option {
	return func(c *Config) { c.BatchTriggerAcquisitionMaxCount = n }
}

func WithBatchTriggerAcquisitionFireAheadTimeWindow(d time.Duration) Option {
	return func(c *Config) { c.BatchTriggerAcquisitionFireAheadTimeWindow = d }
}

func WithSchedulerThreadDaemon(daemon bool) Option {
	return func(c *Config) { c.MakeSchedulerThreadDaemon = daemon }
}

func WithThreadCount(n int) Option {
	return func(c *Config) { c.ThreadCount = n }
}

func WithThreadPriority(p int) Option {
	return func(c *Config) { c.ThreadPriority = p }
}

func WithMisfireThreshold(d time.Duration) Option {
	return func(c *Config) { c.MisfireThreshold = d }
}

// withDefaults is applied by NewStdScheduler so a nil or zero-value
// Config behaves like NewConfig().
func (c *Config) withDefaults() *Config {
	if c == nil {
		return NewConfig()
	}

	defaults := NewConfig()

	if c.InstanceName == "" {
		c.InstanceName = defaults.InstanceName
	}

	if c.InstanceId == "" {
		c.InstanceId = defaults.InstanceId
	}

	if c.IdleWaitTime <= 0 {
		c.IdleWaitTime = defaults.IdleWaitTime
	}

	if c.BatchTriggerAcquisitionMaxCount <= 0 {
		c.BatchTriggerAcquisitionMaxCount = defaults.BatchTriggerAcquisitionMaxCount
	}

	if c.ThreadCount <= 0 {
		c.ThreadCount = defaults.ThreadCount
	}

	if c.MisfireThreshold <= 0 {
		c.MisfireThreshold = defaults.MisfireThreshold
	}

	return c
}

// resolvedInstanceId implements scheduler.instanceId's "AUTO" value:
// hostname plus a uuid, to avoid collisions when two schedulers start
// on the same host within the same millisecond.
func (c *Config) resolvedInstanceId() string {
	if c.InstanceId != autoInstanceId {
		return c.InstanceId
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	return fmt.Sprintf("%s-%s", host, uuid.NewString())
}

// Properties is a flat string-keyed configuration source, the shape
// scheduler.properties-style bootstraps use upstream; FromProperties
// recognizes the keys documented on Config and ignores everything else
// (plugin.*/jobListener.*/triggerListener.* entries are registration
// directives for an XML/properties bootstrap this library doesn't
// implement).
type Properties map[string]string

// FromProperties builds a Config from a flat property map, returning
// an error wrapping ErrSchedulerConfig for a value that fails to
// parse.
func FromProperties(props Properties) (*Config, error) {
	cfg := NewConfig()

	if v, ok := props["scheduler.instanceName"]; ok {
		cfg.InstanceName = v
	}

	if v, ok := props["scheduler.instanceId"]; ok {
		cfg.InstanceId = v
	}

	if v, ok := props["scheduler.idleWaitTime"]; ok {
		d, err := parseMillis(v)
		if err != nil {
			return nil, errSchedulerConfigf("scheduler.idleWaitTime: %s", err)
		}

		cfg.IdleWaitTime = d
	}

	if v, ok := props["scheduler.batchTriggerAcquisitionMaxCount"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errSchedulerConfigf("scheduler.batchTriggerAcquisitionMaxCount: %s", err)
		}

		cfg.BatchTriggerAcquisitionMaxCount = n
	}

	if v, ok := props["scheduler.batchTriggerAcquisitionFireAheadTimeWindow"]; ok {
		d, err := parseMillis(v)
		if err != nil {
			return nil, errSchedulerConfigf("scheduler.batchTriggerAcquisitionFireAheadTimeWindow: %s", err)
		}

		cfg.BatchTriggerAcquisitionFireAheadTimeWindow = d
	}

	if v, ok := props["scheduler.makeSchedulerThreadDaemon"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errSchedulerConfigf("scheduler.makeSchedulerThreadDaemon: %s", err)
		}

		cfg.MakeSchedulerThreadDaemon = b
	}

	if v, ok := props["threadPool.threadCount"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errSchedulerConfigf("threadPool.threadCount: %s", err)
		}

		cfg.ThreadCount = n
	}

	if v, ok := props["threadPool.threadPriority"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errSchedulerConfigf("threadPool.threadPriority: %s", err)
		}

		cfg.ThreadPriority = n
	}

	if v, ok := props["jobStore.misfireThreshold"]; ok {
		d, err := parseMillis(v)
		if err != nil {
			return nil, errSchedulerConfigf("jobStore.misfireThreshold: %s", err)
		}

		cfg.MisfireThreshold = d
	}

	return cfg, nil
}

func parseMillis(v string) (time.Duration, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, err
	}

	return time.Duration(ms) * time.Millisecond, nil
}
