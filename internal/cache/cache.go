package cache

import (
	"time"

	applog "raport/internal/log"
)

// Cache is the contract the report service relies on.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge()
	Size() int
}

// Cleaner is implemented by caches that drop expired entries on demand.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically sweeps registered caches.
type Janitor struct {
	logger  *applog.Logger
	caches  []Cleaner
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewJanitor(logger *applog.Logger) *Janitor {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Janitor{
		logger: logger.WithComponent(applog.ComponentCache),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Register must be called before Start.
func (j *Janitor) Register(c Cleaner) {
	j.caches = append(j.caches, c)
}

func (j *Janitor) Start(interval time.Duration) {
	j.started = true
	go j.run(interval)
}

func (j *Janitor) run(interval time.Duration) {
	defer close(j.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.Sweep(); n > 0 {
				j.logger.Debug("Expired cache entries removed", applog.FieldCount, n)
			}
		case <-j.stop:
			return
		}
	}
}

// Sweep runs one cleanup pass over every registered cache.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stop waits for the sweeping goroutine to exit. Safe to call without Start.
func (j *Janitor) Stop() {
	select {
	case <-j.stop:
		return
	default:
		close(j.stop)
	}
	if j.started {
		<-j.done
	}
}
