package quartz

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// jobWrapper is the store's internal record for a stored job; it is
// never handed to callers directly.
type jobWrapper struct {
	jobDetail JobDetail
}

func (w *jobWrapper) Key() JobKey { return w.jobDetail.Key() }

// triggerWrapper is the store's internal record for a stored trigger,
// carrying the state the pause/acquire/fire protocol transitions
// through.
type triggerWrapper struct {
	trigger OperableTrigger
	state   TriggerState
}

func (w *triggerWrapper) Key() TriggerKey { return w.trigger.Key() }

func (w *triggerWrapper) JobKey() JobKey { return w.trigger.JobKey() }

// compareTriggerWrappers implements the ready-set ordering: next-fire-
// time ascending, then priority descending, then
// key ascending.
func compareTriggerWrappers(lhs, rhs interface{}) int {
	a, b := lhs.(*triggerWrapper), rhs.(*triggerWrapper)

	at, bt := a.trigger.NextFireTime(), b.trigger.NextFireTime()

	switch {
	case at.Before(bt):
		return -1
	case at.After(bt):
		return 1
	}

	if a.trigger.Priority() != b.trigger.Priority() {
		return b.trigger.Priority() - a.trigger.Priority()
	}

	switch {
	case a.Key().Less(b.Key()):
		return -1
	case b.Key().Less(a.Key()):
		return 1
	default:
		return 0
	}
}

// RAMJobStore is the in-memory JobStore, the only store
// implementation the core requires; persistent stores are external
// collaborators layered behind the same interface.
type RAMJobStore struct {
	lock sync.Mutex

	jobsByKey       map[string]*jobWrapper
	jobsByGroup     map[string]map[string]*jobWrapper
	triggersByKey   map[string]*triggerWrapper
	triggersByGroup map[string]map[string]*triggerWrapper
	calendarsByName map[string]Calendar

	timeTriggers *treeSet

	pausedTriggerGroups Set
	pausedJobGroups      Set
	blockedJobs          Set

	signaler Signaler

	misfireThreshold time.Duration
}

// NewRAMJobStore constructs an empty store. misfireThreshold is the
// tolerance past which a due-but-undispatched trigger is treated as
// misfired.
func NewRAMJobStore(misfireThreshold time.Duration) *RAMJobStore {
	if misfireThreshold <= 0 {
		misfireThreshold = 5 * time.Second
	}

	return &RAMJobStore{
		jobsByKey:           make(map[string]*jobWrapper),
		jobsByGroup:         make(map[string]map[string]*jobWrapper),
		triggersByKey:       make(map[string]*triggerWrapper),
		triggersByGroup:     make(map[string]map[string]*triggerWrapper),
		calendarsByName:     make(map[string]Calendar),
		timeTriggers:        NewTreeSet(compareTriggerWrappers).(*treeSet),
		pausedTriggerGroups: NewHashSet(),
		pausedJobGroups:     NewHashSet(),
		blockedJobs:         NewHashSet(),
		misfireThreshold:    misfireThreshold,
	}
}

func (s *RAMJobStore) Initialize(signaler Signaler) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.signaler = signaler

	return nil
}

func (s *RAMJobStore) SchedulerStarted() error { return nil }

func (s *RAMJobStore) SchedulerPaused() {}

func (s *RAMJobStore) SchedulerResumed() {}

func (s *RAMJobStore) Shutdown() {}

// --- jobs -------------------------------------------------------------

func (s *RAMJobStore) StoreJob(job JobDetail, replaceExisting bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.storeJobLocked(job, replaceExisting)
}

func (s *RAMJobStore) storeJobLocked(job JobDetail, replaceExisting bool) error {
	key := job.Key().String()

	if _, exists := s.jobsByKey[key]; exists {
		if !replaceExisting {
			return jobAlreadyExistsError(job.Key())
		}
	}

	jw := &jobWrapper{jobDetail: job.Clone().(JobDetail)}

	s.jobsByKey[key] = jw

	grp, ok := s.jobsByGroup[job.Key().Group()]
	if !ok {
		grp = make(map[string]*jobWrapper)
		s.jobsByGroup[job.Key().Group()] = grp
	}

	grp[key] = jw

	return nil
}

func (s *RAMJobStore) StoreJobAndTrigger(job JobDetail, trigger OperableTrigger) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := s.storeJobLocked(job, false); err != nil {
		return err
	}

	return s.storeTriggerLocked(trigger, false)
}

func (s *RAMJobStore) StoreJobsAndTriggers(jobs map[JobDetail][]OperableTrigger, replace bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !replace {
		for job, triggers := range jobs {
			if _, exists := s.jobsByKey[job.Key().String()]; exists {
				return jobAlreadyExistsError(job.Key())
			}

			for _, trigger := range triggers {
				if _, exists := s.triggersByKey[trigger.Key().String()]; exists {
					return triggerAlreadyExistsError(trigger.Key())
				}
			}
		}
	}

	for job, triggers := range jobs {
		if err := s.storeJobLocked(job, true); err != nil {
			return err
		}

		for _, trigger := range triggers {
			if err := s.storeTriggerLocked(trigger, true); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *RAMJobStore) RemoveJob(key JobKey) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.removeJobLocked(key), nil
}

func (s *RAMJobStore) removeJobLocked(key JobKey) bool {
	if _, exists := s.jobsByKey[key.String()]; !exists {
		return false
	}

	for _, tw := range s.triggersForJobLocked(key) {
		s.removeTriggerLocked(tw.Key(), false)
	}

	delete(s.jobsByKey, key.String())

	if grp, ok := s.jobsByGroup[key.Group()]; ok {
		delete(grp, key.String())

		if len(grp) == 0 {
			delete(s.jobsByGroup, key.Group())
		}
	}

	return true
}

func (s *RAMJobStore) RemoveJobs(keys []JobKey) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	allFound := true

	for _, key := range keys {
		if !s.removeJobLocked(key) {
			allFound = false
		}
	}

	return allFound, nil
}

func (s *RAMJobStore) RetrieveJob(key JobKey) (JobDetail, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	jw, exists := s.jobsByKey[key.String()]
	if !exists {
		return nil, nil
	}

	return jw.jobDetail.Clone().(JobDetail), nil
}

func (s *RAMJobStore) CheckExistsJob(key JobKey) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, exists := s.jobsByKey[key.String()]

	return exists, nil
}

// --- triggers -----------------------------------------------------------

func (s *RAMJobStore) StoreTrigger(trigger OperableTrigger, replaceExisting bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.storeTriggerLocked(trigger, replaceExisting)
}

func (s *RAMJobStore) storeTriggerLocked(trigger OperableTrigger, replaceExisting bool) error {
	key := trigger.Key().String()

	if _, exists := s.triggersByKey[key]; exists {
		if !replaceExisting {
			return triggerAlreadyExistsError(trigger.Key())
		}

		s.removeTriggerLocked(trigger.Key(), false)
	}

	if _, exists := s.jobsByKey[trigger.JobKey().String()]; !exists {
		return jobPersistenceError(trigger.JobKey())
	}

	tw := &triggerWrapper{trigger: trigger.Clone().(OperableTrigger)}

	s.triggersByKey[key] = tw

	grp, ok := s.triggersByGroup[trigger.Key().Group()]
	if !ok {
		grp = make(map[string]*triggerWrapper)
		s.triggersByGroup[trigger.Key().Group()] = grp
	}

	grp[key] = tw

	switch {
	case s.pausedTriggerGroups.Contains(trigger.Key().Group()) || s.pausedJobGroups.Contains(trigger.JobKey().Group()):
		if s.blockedJobs.Contains(trigger.JobKey().String()) {
			tw.state = STATE_PAUSED_BLOCKED
		} else {
			tw.state = STATE_PAUSED
		}
	case s.blockedJobs.Contains(trigger.JobKey().String()):
		tw.state = STATE_BLOCKED
	default:
		tw.state = STATE_WAITING

		s.timeTriggers.Add(tw)
	}

	return nil
}

func (s *RAMJobStore) RemoveTrigger(key TriggerKey) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.removeTriggerLocked(key, true), nil
}

// removeTriggerLocked removes the trigger and, when signalDelete is
// true and the owning job becomes trigger-less and non-durable, removes
// the job too and reports that the job was deleted.
func (s *RAMJobStore) removeTriggerLocked(key TriggerKey, signalDelete bool) bool {
	tw, exists := s.triggersByKey[key.String()]
	if !exists {
		return false
	}

	delete(s.triggersByKey, key.String())

	if grp, ok := s.triggersByGroup[key.Group()]; ok {
		delete(grp, key.String())

		if len(grp) == 0 {
			delete(s.triggersByGroup, key.Group())
		}
	}

	s.timeTriggers.Remove(tw)

	jobKey := tw.JobKey()

	jw, jobExists := s.jobsByKey[jobKey.String()]

	if jobExists && len(s.triggersForJobLocked(jobKey)) == 0 && !jw.jobDetail.Durable() {
		s.removeJobLocked(jobKey)

		if signalDelete && s.signaler != nil {
			s.signaler.NotifySchedulerListenersJobDeleted(jobKey)
		}
	}

	return true
}

func (s *RAMJobStore) RemoveTriggers(keys []TriggerKey) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	allFound := true

	for _, key := range keys {
		if !s.removeTriggerLocked(key, true) {
			allFound = false
		}
	}

	return allFound, nil
}

func (s *RAMJobStore) ReplaceTrigger(key TriggerKey, newTrigger OperableTrigger) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	tw, exists := s.triggersByKey[key.String()]
	if !exists {
		return triggerNotFoundError(key)
	}

	if !tw.JobKey().Equals(newTrigger.JobKey()) {
		return errInvalidTriggerf("replaceTrigger: new trigger %q targets a different job than %q", newTrigger.Key(), key)
	}

	s.removeTriggerLocked(key, false)

	if err := s.storeTriggerLocked(newTrigger, false); err != nil {
		return err
	}

	if s.signaler != nil {
		s.signaler.SignalSchedulingChange(newTrigger.NextFireTime())
	}

	return nil
}

func (s *RAMJobStore) RetrieveTrigger(key TriggerKey) (OperableTrigger, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	tw, exists := s.triggersByKey[key.String()]
	if !exists {
		return nil, nil
	}

	return tw.trigger.Clone().(OperableTrigger), nil
}

func (s *RAMJobStore) CheckExistsTrigger(key TriggerKey) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, exists := s.triggersByKey[key.String()]

	return exists, nil
}

func (s *RAMJobStore) triggersForJobLocked(key JobKey) []*triggerWrapper {
	var out []*triggerWrapper

	for _, tw := range s.triggersByKey {
		if tw.JobKey().Equals(key) {
			out = append(out, tw)
		}
	}

	return out
}

func (s *RAMJobStore) GetTriggersForJob(key JobKey) ([]OperableTrigger, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var out []OperableTrigger

	for _, tw := range s.triggersForJobLocked(key) {
		out = append(out, tw.trigger.Clone().(OperableTrigger))
	}

	return out, nil
}

// --- calendars ------------------------------------------------------

func (s *RAMJobStore) StoreCalendar(name string, cal Calendar, replace, updateTriggers bool) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, exists := s.calendarsByName[name]
	if exists && !replace {
		return calendarAlreadyExistsError(name)
	}

	s.calendarsByName[name] = cal

	if !exists || !updateTriggers {
		return nil
	}

	for _, tw := range s.triggersByKey {
		if tw.trigger.CalendarName() != name {
			continue
		}

		s.timeTriggers.Remove(tw)
		tw.trigger.UpdateWithNewCalendar(cal, s.misfireThreshold)

		if tw.state == STATE_WAITING {
			s.timeTriggers.Add(tw)
		}
	}

	return nil
}

func (s *RAMJobStore) RemoveCalendar(name string) (bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, exists := s.calendarsByName[name]; !exists {
		return false, nil
	}

	for _, tw := range s.triggersByKey {
		if tw.trigger.CalendarName() == name {
			return false, calendarInUseError(name)
		}
	}

	delete(s.calendarsByName, name)

	return true, nil
}

func (s *RAMJobStore) RetrieveCalendar(name string) (Calendar, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	cal, exists := s.calendarsByName[name]
	if !exists {
		return nil, nil
	}

	return cal, nil
}

func (s *RAMJobStore) ClearAllSchedulingData() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.triggersByKey = make(map[string]*triggerWrapper)
	s.triggersByGroup = make(map[string]map[string]*triggerWrapper)
	s.jobsByKey = make(map[string]*jobWrapper)
	s.jobsByGroup = make(map[string]map[string]*jobWrapper)
	s.calendarsByName = make(map[string]Calendar)
	s.timeTriggers = NewTreeSet(compareTriggerWrappers).(*treeSet)
	s.pausedTriggerGroups = NewHashSet()
	s.pausedJobGroups = NewHashSet()
	s.blockedJobs = NewHashSet()

	logrus.Info("quartz: all scheduling data cleared")

	return nil
}

// --- counts & listings -----------------------------------------------

func (s *RAMJobStore) GetNumberOfJobs() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.jobsByKey), nil
}

func (s *RAMJobStore) GetNumberOfTriggers() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.triggersByKey), nil
}

func (s *RAMJobStore) GetNumberOfCalendars() (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.calendarsByName), nil
}

// matchGroups returns the group names among `all` that satisfy matcher,
// using a direct map lookup for the EQUALS operator.
func matchGroups(all map[string]map[string]*jobWrapper, matcher GroupMatcher) []string {
	if group, ok := equalsFastPath(matcher); ok {
		if _, exists := all[group]; exists {
			return []string{group}
		}

		return nil
	}

	var out []string

	for group := range all {
		if matcher.Matches(group) {
			out = append(out, group)
		}
	}

	return out
}

func matchTriggerGroups(all map[string]map[string]*triggerWrapper, matcher GroupMatcher) []string {
	if group, ok := equalsFastPath(matcher); ok {
		if _, exists := all[group]; exists {
			return []string{group}
		}

		return nil
	}

	var out []string

	for group := range all {
		if matcher.Matches(group) {
			out = append(out, group)
		}
	}

	return out
}

func (s *RAMJobStore) GetJobKeys(matcher GroupMatcher) ([]JobKey, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var out []JobKey

	for _, group := range matchGroups(s.jobsByGroup, matcher) {
		for _, jw := range s.jobsByGroup[group] {
			out = append(out, jw.Key())
		}
	}

	return out, nil
}

func (s *RAMJobStore) GetTriggerKeys(matcher GroupMatcher) ([]TriggerKey, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var out []TriggerKey

	for _, group := range matchTriggerGroups(s.triggersByGroup, matcher) {
		for _, tw := range s.triggersByGroup[group] {
			out = append(out, tw.Key())
		}
	}

	return out, nil
}

func (s *RAMJobStore) GetJobGroupNames() ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var out []string

	for group := range s.jobsByGroup {
		out = append(out, group)
	}

	return out, nil
}

func (s *RAMJobStore) GetTriggerGroupNames() ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var out []string

	for group := range s.triggersByGroup {
		out = append(out, group)
	}

	return out, nil
}

func (s *RAMJobStore) GetCalendarNames() ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var out []string

	for name := range s.calendarsByName {
		out = append(out, name)
	}

	return out, nil
}

func (s *RAMJobStore) GetTriggerState(key TriggerKey) (TriggerState, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	tw, exists := s.triggersByKey[key.String()]
	if !exists {
		return STATE_NONE, nil
	}

	switch tw.state {
	case STATE_PAUSED, STATE_PAUSED_BLOCKED:
		return STATE_PAUSED, nil
	case STATE_COMPLETE:
		return STATE_COMPLETE, nil
	case STATE_ERROR:
		return STATE_ERROR, nil
	case STATE_BLOCKED:
		return STATE_BLOCKED, nil
	default:
		return STATE_NORMAL, nil
	}
}

func (s *RAMJobStore) GetPausedTriggerGroups() ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var out []string

	for _, g := range s.pausedTriggerGroups.Keys() {
		out = append(out, g.(string))
	}

	return out, nil
}

// --- pause/resume -----------------------------------------------------

func (s *RAMJobStore) pauseTriggerLocked(key TriggerKey) {
	tw, exists := s.triggersByKey[key.String()]
	if !exists {
		return
	}

	switch tw.state {
	case STATE_WAITING, STATE_ACQUIRED:
		s.timeTriggers.Remove(tw)
		tw.state = STATE_PAUSED
	case STATE_BLOCKED:
		tw.state = STATE_PAUSED_BLOCKED
	}
}

func (s *RAMJobStore) PauseTrigger(key TriggerKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.pauseTriggerLocked(key)

	return nil
}

func (s *RAMJobStore) PauseTriggers(matcher GroupMatcher) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	groups := matchTriggerGroups(s.triggersByGroup, matcher)

	for _, group := range groups {
		s.pausedTriggerGroups.Add(group)

		for key := range s.triggersByGroup[group] {
			s.pauseTriggerLocked(s.triggersByKey[key].Key())
		}
	}

	return groups, nil
}

func (s *RAMJobStore) PauseJob(key JobKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, tw := range s.triggersForJobLocked(key) {
		s.pauseTriggerLocked(tw.Key())
	}

	return nil
}

func (s *RAMJobStore) PauseJobs(matcher GroupMatcher) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	groups := matchGroups(s.jobsByGroup, matcher)

	for _, group := range groups {
		s.pausedJobGroups.Add(group)

		for _, jw := range s.jobsByGroup[group] {
			for _, tw := range s.triggersForJobLocked(jw.Key()) {
				s.pauseTriggerLocked(tw.Key())
			}
		}
	}

	return groups, nil
}

// resumeTriggerLocked applies the post-resume misfire check before reinserting into the ready
// set.
func (s *RAMJobStore) resumeTriggerLocked(key TriggerKey) {
	tw, exists := s.triggersByKey[key.String()]
	if !exists {
		return
	}

	switch tw.state {
	case STATE_PAUSED:
		tw.state = STATE_WAITING
	case STATE_PAUSED_BLOCKED:
		tw.state = STATE_BLOCKED
	default:
		return
	}

	if tw.state != STATE_WAITING {
		return
	}

	cal, _ := s.calendarByNameLocked(tw.trigger.CalendarName())

	now := time.Now()
	if next := tw.trigger.NextFireTime(); !next.IsZero() && now.Sub(next) >= s.misfireThreshold && tw.trigger.MisfireInstruction() != MISFIRE_INSTRUCTION_IGNORE_MISFIRE_POLICY {
		if s.signaler != nil {
			s.signaler.NotifyTriggerListenersMisfired(tw.trigger.Clone().(OperableTrigger))
		}

		tw.trigger.UpdateAfterMisfire(cal)
	}

	if tw.trigger.NextFireTime().IsZero() {
		tw.state = STATE_COMPLETE

		if s.signaler != nil {
			s.signaler.NotifySchedulerListenersFinalized(tw.trigger.Clone().(OperableTrigger))
		}

		return
	}

	s.timeTriggers.Add(tw)
}

func (s *RAMJobStore) calendarByNameLocked(name string) (Calendar, bool) {
	if name == "" {
		return nil, false
	}

	cal, exists := s.calendarsByName[name]

	return cal, exists
}

func (s *RAMJobStore) ResumeTrigger(key TriggerKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.resumeTriggerLocked(key)

	if s.signaler != nil {
		s.signaler.SignalSchedulingChange(zero)
	}

	return nil
}

func (s *RAMJobStore) ResumeTriggers(matcher GroupMatcher) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	groups := matchTriggerGroups(s.triggersByGroup, matcher)

	for _, group := range groups {
		s.pausedTriggerGroups.Remove(group)

		for key, tw := range s.triggersByGroup[group] {
			if s.pausedJobGroups.Contains(tw.JobKey().Group()) {
				continue
			}

			s.resumeTriggerLocked(s.triggersByKey[key].Key())
		}
	}

	if s.signaler != nil {
		s.signaler.SignalSchedulingChange(zero)
	}

	return groups, nil
}

func (s *RAMJobStore) ResumeJob(key JobKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for _, tw := range s.triggersForJobLocked(key) {
		s.resumeTriggerLocked(tw.Key())
	}

	if s.signaler != nil {
		s.signaler.SignalSchedulingChange(zero)
	}

	return nil
}

func (s *RAMJobStore) ResumeJobs(matcher GroupMatcher) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	groups := matchGroups(s.jobsByGroup, matcher)

	for _, group := range groups {
		s.pausedJobGroups.Remove(group)

		for _, jw := range s.jobsByGroup[group] {
			for _, tw := range s.triggersForJobLocked(jw.Key()) {
				s.resumeTriggerLocked(tw.Key())
			}
		}
	}

	if s.signaler != nil {
		s.signaler.SignalSchedulingChange(zero)
	}

	return groups, nil
}

func (s *RAMJobStore) PauseAll() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	for group := range s.triggersByGroup {
		s.pausedTriggerGroups.Add(group)
	}

	for key := range s.triggersByKey {
		s.pauseTriggerLocked(s.triggersByKey[key].Key())
	}

	return nil
}

func (s *RAMJobStore) ResumeAll() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.pausedTriggerGroups = NewHashSet()
	s.pausedJobGroups = NewHashSet()

	for key := range s.triggersByKey {
		s.resumeTriggerLocked(s.triggersByKey[key].Key())
	}

	if s.signaler != nil {
		s.signaler.SignalSchedulingChange(zero)
	}

	return nil
}

// --- acquire / fire / complete -----------------------------------------

// AcquireNextTriggers finds the next batch of due, unpaused,
// unblocked triggers and marks them acquired.
func (s *RAMJobStore) AcquireNextTriggers(noLaterThan time.Time, maxCount int, timeWindow time.Duration) ([]OperableTrigger, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.timeTriggers.Empty() {
		return nil, nil
	}

	var (
		result    []OperableTrigger
		setAside  []*triggerWrapper
		acquired  = make(map[string]bool)
		batchEnd  = noLaterThan
		extended  bool
	)

	for len(result) < maxCount {
		first := s.timeTriggers.First()
		if first == nil {
			break
		}

		tw := first.(*triggerWrapper)
		s.timeTriggers.Remove(tw)

		if tw.trigger.NextFireTime().IsZero() {
			continue
		}

		now := time.Now()
		if now.Sub(tw.trigger.NextFireTime()) >= s.misfireThreshold && tw.trigger.MisfireInstruction() != MISFIRE_INSTRUCTION_IGNORE_MISFIRE_POLICY {
			if s.signaler != nil {
				s.signaler.NotifyTriggerListenersMisfired(tw.trigger.Clone().(OperableTrigger))
			}

			cal, _ := s.calendarByNameLocked(tw.trigger.CalendarName())
			tw.trigger.UpdateAfterMisfire(cal)

			if tw.trigger.NextFireTime().IsZero() {
				tw.state = STATE_COMPLETE

				if s.signaler != nil {
					s.signaler.NotifySchedulerListenersFinalized(tw.trigger.Clone().(OperableTrigger))
				}
			} else {
				s.timeTriggers.Add(tw)
			}

			continue
		}

		if tw.trigger.NextFireTime().After(batchEnd) {
			s.timeTriggers.Add(tw)

			break
		}

		if !extended {
			extended = true

			ext := tw.trigger.NextFireTime()
			if ext.Before(now) {
				ext = now
			}

			batchEnd = ext.Add(timeWindow)
		}

		job, _ := s.jobsByKey[tw.JobKey().String()]

		if job != nil && job.jobDetail.ConcurrentExecutionDisallowed() && acquired[tw.JobKey().String()] {
			setAside = append(setAside, tw)

			continue
		}

		tw.state = STATE_ACQUIRED
		tw.trigger.SetFireInstanceId(newFireInstanceId())

		clone := tw.trigger.Clone().(OperableTrigger)
		result = append(result, clone)

		acquired[tw.JobKey().String()] = true
	}

	for _, tw := range setAside {
		s.timeTriggers.Add(tw)
	}

	return result, nil
}

func (s *RAMJobStore) ReleaseAcquiredTrigger(trigger OperableTrigger) {
	s.lock.Lock()
	defer s.lock.Unlock()

	tw, exists := s.triggersByKey[trigger.Key().String()]
	if !exists || tw.state != STATE_ACQUIRED {
		return
	}

	tw.state = STATE_WAITING

	s.timeTriggers.Add(tw)
}

// TriggersFired advances each acquired trigger past its fire time and
// builds the bundle the scheduler hands to a job.
func (s *RAMJobStore) TriggersFired(triggers []OperableTrigger) ([]*TriggerFiredResult, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var results []*TriggerFiredResult

	for _, acquired := range triggers {
		tw, exists := s.triggersByKey[acquired.Key().String()]
		if !exists || tw.state != STATE_ACQUIRED {
			continue
		}

		var cal Calendar

		if name := tw.trigger.CalendarName(); name != "" {
			c, found := s.calendarByNameLocked(name)
			if !found {
				continue
			}

			cal = c
		}

		prevFireTime := tw.trigger.PreviousFireTime()
		scheduledFireTime := tw.trigger.NextFireTime()

		tw.trigger.Triggered(cal)
		acquired.Triggered(cal)

		jw := s.jobsByKey[tw.JobKey().String()]
		if jw == nil {
			results = append(results, &TriggerFiredResult{Err: jobNotFoundError(tw.JobKey())})

			continue
		}

		tw.state = STATE_WAITING

		if jw.jobDetail.ConcurrentExecutionDisallowed() {
			s.blockedJobs.Add(tw.JobKey().String())

			for _, other := range s.triggersForJobLocked(tw.JobKey()) {
				switch other.state {
				case STATE_WAITING:
					s.timeTriggers.Remove(other)
					other.state = STATE_BLOCKED
				case STATE_PAUSED:
					other.state = STATE_PAUSED_BLOCKED
				}
			}
		} else if !tw.trigger.NextFireTime().IsZero() {
			s.timeTriggers.Add(tw)
		}

		now := time.Now()

		results = append(results, &TriggerFiredResult{Bundle: &TriggerFiredBundle{
			JobDetail:         jw.jobDetail.Clone().(JobDetail),
			Trigger:           acquired.Clone().(OperableTrigger),
			Calendar:          cal,
			Recovering:        false,
			FireTime:          now,
			ScheduledFireTime: scheduledFireTime,
			PrevFireTime:      prevFireTime,
			NextFireTime:      tw.trigger.NextFireTime(),
		}})
	}

	return results, nil
}

// TriggeredJobComplete applies the post-execution disposition a
// trigger requested and unblocks the job if it disallows concurrent
// execution.
func (s *RAMJobStore) TriggeredJobComplete(trigger OperableTrigger, jobDetail JobDetail, instruction CompletedExecutionInstruction) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	jw, jobExists := s.jobsByKey[jobDetail.Key().String()]

	if jobExists && jobDetail.PersistJobDataAfterExecution() {
		jw.jobDetail = jobDetail.Clone().(JobDetail)
		jw.jobDetail.JobDataMap().ClearDirtyFlag()
	}

	if jobExists && jobDetail.ConcurrentExecutionDisallowed() {
		s.blockedJobs.Remove(jobDetail.Key().String())

		for _, other := range s.triggersForJobLocked(jobDetail.Key()) {
			switch other.state {
			case STATE_BLOCKED:
				other.state = STATE_WAITING

				s.timeTriggers.Add(other)
			case STATE_PAUSED_BLOCKED:
				other.state = STATE_PAUSED
			}
		}

		if s.signaler != nil {
			s.signaler.SignalSchedulingChange(zero)
		}
	}

	tw, exists := s.triggersByKey[trigger.Key().String()]

	switch instruction {
	case NOOP:
		// no trigger state change.
	case DELETE_TRIGGER:
		if trigger.NextFireTime().IsZero() {
			// Only delete if the store's own copy agrees no further fire
			// is scheduled; a concurrent ReplaceTrigger/misfire update
			// between acquisition and completion must win over a stale
			// request.
			if exists && tw.trigger.NextFireTime().IsZero() {
				s.removeTriggerLocked(trigger.Key(), true)
			}
		} else {
			s.removeTriggerLocked(trigger.Key(), true)

			if s.signaler != nil {
				s.signaler.SignalSchedulingChange(zero)
			}
		}
	case SET_TRIGGER_COMPLETE:
		if exists {
			s.timeTriggers.Remove(tw)
			tw.state = STATE_COMPLETE

			if s.signaler != nil {
				s.signaler.SignalSchedulingChange(zero)
			}
		}
	case SET_TRIGGER_ERROR:
		if exists {
			tw.state = STATE_ERROR

			if s.signaler != nil {
				s.signaler.SignalSchedulingChange(zero)
			}
		}
	case SET_ALL_JOB_TRIGGERS_COMPLETE:
		for _, other := range s.triggersForJobLocked(jobDetail.Key()) {
			s.timeTriggers.Remove(other)
			other.state = STATE_COMPLETE
		}

		if s.signaler != nil {
			s.signaler.SignalSchedulingChange(zero)
		}
	case SET_ALL_JOB_TRIGGERS_ERROR:
		for _, other := range s.triggersForJobLocked(jobDetail.Key()) {
			other.state = STATE_ERROR
		}

		if s.signaler != nil {
			s.signaler.SignalSchedulingChange(zero)
		}
	case RE_EXECUTE_JOB:
		// Force an immediate refire: put the trigger back on the ready
		// set at "now" regardless of where TriggersFired had already
		// advanced it to, rather than waiting for its next natural
		// occurrence.
		if exists {
			s.timeTriggers.Remove(tw)
			tw.trigger.SetNextFireTime(time.Now())
			tw.state = STATE_WAITING
			s.timeTriggers.Add(tw)
		}

		if s.signaler != nil {
			s.signaler.SignalSchedulingChange(zero)
		}
	}

	return nil
}
