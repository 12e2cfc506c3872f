// Package presence maintains the global online-user directory.
// Presence is independent of room membership: a user may be present
// without sitting in any room. Records are best-effort and expire
// when heartbeats stop arriving.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"lyceum/domain"
)

// DefaultThreshold is the inactivity age beyond which a record is swept.
const DefaultThreshold = 6 * time.Minute

// Record tracks one online user.
type Record struct {
	UserID       string
	ConnID       string
	LastActivity time.Time
}

// Expired reports one record removed by a sweep.
type Expired struct {
	UserID   string
	LastSeen time.Time
}

type Directory struct {
	mu      sync.RWMutex
	log     *slog.Logger
	records map[string]*Record
	// lastSeen outlives the record so StatusOf can answer for offline users.
	lastSeen map[string]time.Time
	now      func() time.Time
}

func NewDirectory(log *slog.Logger) *Directory {
	return &Directory{
		log:      log,
		records:  make(map[string]*Record),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (d *Directory) WithClock(now func() time.Time) *Directory {
	d.now = now
	return d
}

// SetOnline inserts or overwrites the user's record with fresh timestamps.
func (d *Directory) SetOnline(userID, connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[userID] = &Record{UserID: userID, ConnID: connID, LastActivity: d.now()}
}

// SetOffline records the last-seen time and removes the record.
// Removing an absent user is a no-op and reports a nil last-seen.
func (d *Directory) SetOffline(userID string) *time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[userID]; !ok {
		return nil
	}
	delete(d.records, userID)
	seen := d.now()
	d.lastSeen[userID] = seen
	return &seen
}

// Heartbeat refreshes the user's last-activity timestamp.
// Returns false when no record exists so the caller can tell the
// client its session is no longer tracked.
func (d *Directory) Heartbeat(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	rec, ok := d.records[userID]
	if !ok {
		return false
	}
	rec.LastActivity = d.now()
	return true
}

// StatusOf answers a presence query. Online users have a nil last-seen;
// offline users carry their stored last-seen, or nil if never seen.
func (d *Directory) StatusOf(userID string) domain.Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.records[userID]; ok {
		return domain.OnlineStatus()
	}
	if seen, ok := d.lastSeen[userID]; ok {
		return domain.OfflineStatus(lo.ToPtr(seen.UnixMilli()))
	}
	return domain.OfflineStatus(nil)
}

// ListOnline returns the sorted identifiers of all online users.
func (d *Directory) ListOnline() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := lo.Keys(d.records)
	sort.Strings(users)
	return users
}

// OnlineCount returns the number of online users.
func (d *Directory) OnlineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Sweep removes every record whose last activity is older than the
// threshold and reports the removals. The caller serializes invocations;
// the directory itself only guarantees the scan is atomic.
func (d *Directory) Sweep(now time.Time, threshold time.Duration) []Expired {
	d.mu.Lock()
	defer d.mu.Unlock()

	var expired []Expired
	for userID, rec := range d.records {
		if now.Sub(rec.LastActivity) <= threshold {
			continue
		}
		delete(d.records, userID)
		d.lastSeen[userID] = rec.LastActivity
		expired = append(expired, Expired{UserID: userID, LastSeen: rec.LastActivity})
	}
	if len(expired) > 0 {
		d.log.Info("Swept stale presence records", "count", len(expired))
	}
	return expired
}
