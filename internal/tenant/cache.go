// Package tenant keeps one database handle per club and evicts handles that sit idle.
package tenant

import (
	"context"
	"errors"
	"sync"
	"time"

	"clube_beneficios/internal/domain"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Opener opens the database of a club
type Opener func(club *domain.Club) (*gorm.DB, error)

type entry struct {
	db       *gorm.DB
	lastUsed time.Time
}

// Cache maps club IDs to open database handles with a fixed idle TTL
type Cache struct {
	mu      sync.Mutex
	entries map[uint]*entry
	open    Opener
	idleTTL time.Duration
	now     func() time.Time

	// OnSizeChange is called with the pool size after every insert or eviction
	OnSizeChange func(size int)
}

// NewCache creates an empty cache
func NewCache(open Opener, idleTTL time.Duration) *Cache {
	return &Cache{
		entries: make(map[uint]*entry),
		open:    open,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

// Get returns the handle of the club, opening it on first use
func (c *Cache) Get(club *domain.Club) (*gorm.DB, error) {
	if club == nil || club.ID == 0 {
		return nil, errors.New("tenant: club is required")
	}
	c.mu.Lock()
	if e, ok := c.entries[club.ID]; ok {
		e.lastUsed = c.now()
		c.mu.Unlock()
		return e.db, nil
	}
	c.mu.Unlock()

	// Open outside the lock so a slow tenant does not block the others
	db, err := c.open(club)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[club.ID]; ok {
		// Lost the race; keep the handle that is already shared
		e.lastUsed = c.now()
		c.mu.Unlock()
		closeDB(club.ID, db)
		return e.db, nil
	}
	c.entries[club.ID] = &entry{db: db, lastUsed: c.now()}
	size := len(c.entries)
	c.mu.Unlock()

	logrus.WithField("club_id", club.ID).Debug("Tenant connection opened")
	c.reportSize(size)
	return db, nil
}

// Sweep closes handles idle for longer than the TTL and returns how many were evicted
func (c *Cache) Sweep() int {
	cutoff := c.now().Add(-c.idleTTL)
	var idle []*entry
	var ids []uint

	c.mu.Lock()
	for id, e := range c.entries {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e)
			ids = append(ids, id)
			delete(c.entries, id)
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	for i, e := range idle {
		closeDB(ids[i], e.db)
	}
	if len(idle) > 0 {
		logrus.WithFields(logrus.Fields{"evicted": len(idle), "remaining": size}).Info("Idle tenant connections evicted")
		c.reportSize(size)
	}
	return len(idle)
}

// Run sweeps on every tick until ctx is cancelled
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Evict closes the handle of one club, e.g. after it was deactivated
func (c *Cache) Evict(clubID uint) bool {
	c.mu.Lock()
	e, ok := c.entries[clubID]
	delete(c.entries, clubID)
	size := len(c.entries)
	c.mu.Unlock()
	if !ok {
		return false
	}
	closeDB(clubID, e.db)
	c.reportSize(size)
	return true
}

// Len returns the number of open handles
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close closes every handle and empties the cache
func (c *Cache) Close() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[uint]*entry)
	c.mu.Unlock()
	for id, e := range entries {
		closeDB(id, e.db)
	}
	c.reportSize(0)
}

func (c *Cache) reportSize(size int) {
	if c.OnSizeChange != nil {
		c.OnSizeChange(size)
	}
}

func closeDB(clubID uint, db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.WithFields(logrus.Fields{"club_id": clubID, "error": err.Error()}).Warn("Failed to close tenant connection")
	}
}
