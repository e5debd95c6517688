package quartz

import (
	"time"
)

//
// The interface to be implemented by classes which represent a 'job' to be performed.
//
type Job interface {
	// Execute is called by the Scheduler when a Trigger fires that is
	// associated with the Job. Returning a *JobExecutionError requests
	// non-default post-execution handling (refire, unschedule); any
	// other non-nil error is treated as a generic failure.
	Execute(context JobExecutionContext) error
}

//
// A context bundle containing handles to various environment information,
// that is given to a JobDetail instance as it is executed,
// and to a Trigger instance after the execution completes.
//
type JobExecutionContext interface {
	Scheduler() Scheduler

	Trigger() OperableTrigger

	JobInstance() Job

	JobDetail() JobDetail

	FireTime() time.Time

	ScheduledFireTime() time.Time

	PreviousFireTime() time.Time

	NextFireTime() time.Time

	JobRunTime() time.Duration

	Result() interface{}

	SetResult(interface{})

	MergedJobDataMap() JobDataMap

	Put(key string, value interface{})

	Get(key string) interface{}
}

type jobExecutionContext struct {
	scheduler         Scheduler
	trigger           OperableTrigger
	jobDetail         JobDetail
	job               Job
	fireTime          time.Time
	scheduledFireTime time.Time
	prevFireTime      time.Time
	nextFireTime      time.Time
	jobRunTime        time.Duration
	result            interface{}
	mergedData        JobDataMap
}

func newJobExecutionContext(sched Scheduler, bundle *TriggerFiredBundle, job Job) *jobExecutionContext {
	merged := NewJobDataMap()
	merged.PutAll(bundle.JobDetail.JobDataMap())
	merged.PutAll(bundle.Trigger.JobDataMap())

	return &jobExecutionContext{
		scheduler:         sched,
		trigger:           bundle.Trigger,
		jobDetail:         bundle.JobDetail,
		job:               job,
		fireTime:          bundle.FireTime,
		scheduledFireTime: bundle.ScheduledFireTime,
		prevFireTime:      bundle.PrevFireTime,
		nextFireTime:      bundle.NextFireTime,
		mergedData:        merged,
	}
}

func (c *jobExecutionContext) Scheduler() Scheduler { return c.scheduler }

func (c *jobExecutionContext) Trigger() OperableTrigger { return c.trigger }

func (c *jobExecutionContext) JobDetail() JobDetail { return c.jobDetail }

func (c *jobExecutionContext) JobInstance() Job { return c.job }

func (c *jobExecutionContext) FireTime() time.Time { return c.fireTime }

func (c *jobExecutionContext) ScheduledFireTime() time.Time { return c.scheduledFireTime }

func (c *jobExecutionContext) PreviousFireTime() time.Time { return c.prevFireTime }

func (c *jobExecutionContext) NextFireTime() time.Time { return c.nextFireTime }

func (c *jobExecutionContext) JobRunTime() time.Duration { return c.jobRunTime }

func (c *jobExecutionContext) setJobRunTime(d time.Duration) { c.jobRunTime = d }

func (c *jobExecutionContext) Result() interface{} { return c.result }

func (c *jobExecutionContext) SetResult(result interface{}) { c.result = result }

func (c *jobExecutionContext) MergedJobDataMap() JobDataMap { return c.mergedData }

func (c *jobExecutionContext) Put(key string, value interface{}) { c.mergedData.Put(key, value) }

func (c *jobExecutionContext) Get(key string) interface{} { return c.mergedData.Get(key) }

//
// Conveys the detail properties of a given Job instance.
// JobDetails are to be created/defined with JobBuilder.
//
type JobDetail interface {
	Cloneable

	Key() JobKey

	Description() string

	// Job is the user-supplied runnable this detail describes.
	Job() Job

	// Durable jobs may exist in the store without any trigger
	// referencing them.
	Durable() bool

	// PersistJobDataAfterExecution: when true, the execution context's
	// job data map is written back to the stored job after execution.
	PersistJobDataAfterExecution() bool

	// ConcurrentExecutionDisallowed: when true, at most one execution of
	// this job may be in flight at a time.
	ConcurrentExecutionDisallowed() bool

	JobDataMap() JobDataMap

	JobBuilder() *JobBuilder
}

type JobDataMap interface {
	DirtyFlagMap
}

// JobFactory instantiates the Job a JobDetail describes.
type JobFactory interface {
	NewJob(bundle *TriggerFiredBundle, sched Scheduler) (Job, error)
}

type simpleJobFactory struct{}

func (simpleJobFactory) NewJob(bundle *TriggerFiredBundle, sched Scheduler) (Job, error) {
	return bundle.JobDetail.Job(), nil
}

type jobDetail struct {
	key                            JobKey
	desc                           string
	job                            Job
	durable                        bool
	persistJobDataAfterExecution   bool
	concurrentExecutionDisallowed  bool
	dataMap                        JobDataMap
	builder                        *JobBuilder
}

func (d *jobDetail) Key() JobKey { return d.key }

func (d *jobDetail) Description() string { return d.desc }

func (d *jobDetail) Job() Job { return d.job }

func (d *jobDetail) Durable() bool { return d.durable }

func (d *jobDetail) PersistJobDataAfterExecution() bool { return d.persistJobDataAfterExecution }

func (d *jobDetail) ConcurrentExecutionDisallowed() bool { return d.concurrentExecutionDisallowed }

func (d *jobDetail) JobDataMap() JobDataMap {
	if d.dataMap == nil {
		d.dataMap = NewJobDataMap()
	}

	return d.dataMap
}

func (d *jobDetail) JobBuilder() *JobBuilder { return d.builder }

func (d *jobDetail) Clone() interface{} {
	clone := *d

	if d.dataMap != nil {
		clone.dataMap = d.dataMap.Clone().(JobDataMap)
	}

	return &clone
}

func NewJobDataMap() JobDataMap {
	return JobDataMap(NewDirtyFlagMap())
}

//
// JobBuilder is used to instantiate JobDetails.
//
type JobBuilder struct {
	Key                           JobKey
	Description                   string
	Job                           Job
	Durable                       bool
	PersistJobDataAfterExecution  bool
	ConcurrentExecutionDisallowed bool
	DataMap                       JobDataMap
}

// NewJob starts a JobBuilder wrapping the given Job instance.
func NewJob(job Job) *JobBuilder {
	return &JobBuilder{Job: job}
}

func (b *JobBuilder) WithIdentity(name string) *JobBuilder {
	b.Key = NewJobKey(name)

	return b
}

func (b *JobBuilder) WithGroupIdentity(name, group string) *JobBuilder {
	b.Key = NewGroupJobKey(name, group)

	return b
}

func (b *JobBuilder) WithJobKey(key JobKey) *JobBuilder {
	b.Key = key

	return b
}

func (b *JobBuilder) WithDescription(desc string) *JobBuilder {
	b.Description = desc

	return b
}

func (b *JobBuilder) StoreDurably() *JobBuilder {
	b.Durable = true

	return b
}

func (b *JobBuilder) WithPersistJobDataAfterExecution(persist bool) *JobBuilder {
	b.PersistJobDataAfterExecution = persist

	return b
}

func (b *JobBuilder) WithConcurrentExecutionDisallowed(disallowed bool) *JobBuilder {
	b.ConcurrentExecutionDisallowed = disallowed

	return b
}

func (b *JobBuilder) UsingJobData(key string, value interface{}) *JobBuilder {
	if b.DataMap == nil {
		b.DataMap = NewJobDataMap()
	}

	b.DataMap.Put(key, value)

	return b
}

func (b *JobBuilder) UsingJobDataMap(dataMap JobDataMap) *JobBuilder {
	if b.DataMap == nil {
		b.DataMap = NewJobDataMap()
	}

	b.DataMap.PutAll(dataMap)

	return b
}

func (b *JobBuilder) SetJobDataMap(dataMap JobDataMap) *JobBuilder {
	b.DataMap = dataMap

	return b
}

func (b *JobBuilder) Build() JobDetail {
	job := &jobDetail{
		key:                           b.Key,
		desc:                          b.Description,
		job:                           b.Job,
		durable:                       b.Durable,
		persistJobDataAfterExecution:  b.PersistJobDataAfterExecution,
		concurrentExecutionDisallowed: b.ConcurrentExecutionDisallowed,
		dataMap:                       b.DataMap,
		builder:                       b,
	}

	if (job.key == JobKey{}) {
		job.key = NewUniqueJobKey("")
	}

	return job
}
