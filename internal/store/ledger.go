package store

import (
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

const ledgerFile = "announcements.json"

// LedgerRetentionDays bounds how long past-day ledger entries are kept
// (spec §3 AnnouncementLedger: "Retention: 60 days").
const LedgerRetentionDays = 60

// SpecialDayKey identifies one already-announced observance.
type SpecialDayKey struct {
	Date   string `json:"date"` // MM-DD
	Name   string `json:"name"`
	Source string `json:"source"`
}

// DayLedger is the per-date-key entry of the AnnouncementLedger (spec §3).
type DayLedger struct {
	AnnouncedUserIDs              map[string]bool `json:"announced_user_ids"`
	AnnouncedTimezoneBucketUserIDs map[string]bool `json:"announced_timezone_bucket_user_ids"`
	BotSelfAnnounced              bool            `json:"bot_self_announced"`
	SpecialDaysAnnounced          []SpecialDayKey `json:"special_days_announced"`
}

// Ledger is the full on-disk ledger keyed by date (YYYY-MM-DD).
type Ledger struct {
	Days map[string]DayLedger `json:"days"`
}

func emptyDayLedger() DayLedger {
	return DayLedger{
		AnnouncedUserIDs:               map[string]bool{},
		AnnouncedTimezoneBucketUserIDs: map[string]bool{},
	}
}

// LoadLedger reads storage/announcements.json, never returning a nil map.
func (s *Store) LoadLedger() (Ledger, error) {
	var l Ledger
	if _, err := s.ReadJSON(ledgerFile, &l); err != nil {
		return Ledger{}, err
	}
	if l.Days == nil {
		l.Days = map[string]DayLedger{}
	}
	return l, nil
}

func (s *Store) saveLedger(l Ledger) error {
	return s.WriteJSON(ledgerFile, l)
}

// TryMarkFleetWide performs the ledger-check-and-set for fleet-wide mode
// under the datastore's write lock, returning ok=false (errs.Duplicate)
// if userID was already celebrated for dateKey — this is the at-most-once
// guarantee from spec §3/§5, enforceable across a scheduler-tick vs.
// admin-immediate race because both paths go through this single
// locked read-modify-write.
func (s *Store) TryMarkFleetWide(dateKey, userID string) (ok bool, err error) {
	fl := lockFor(s.path(ledgerFile))
	if !tryLockTimeout(fl, LockTimeout) {
		return false, errs.New(errs.UpstreamTransient, "timed out acquiring ledger lock")
	}
	defer fl.unlock()

	l, err := s.loadLedgerLocked()
	if err != nil {
		return false, err
	}
	day, ok2 := l.Days[dateKey]
	if !ok2 {
		day = emptyDayLedger()
	}
	if day.AnnouncedUserIDs[userID] {
		return false, nil
	}
	day.AnnouncedUserIDs[userID] = true
	l.Days[dateKey] = day
	if err := s.writeJSONLocked(ledgerFile, l); err != nil {
		return false, err
	}
	return true, nil
}

// TryMarkTimezoneBucket is the timezone-aware analogue keyed by
// (today, user_local_date) per spec §4.3.
func (s *Store) TryMarkTimezoneBucket(dateKey, idempotencyKey string) (ok bool, err error) {
	fl := lockFor(s.path(ledgerFile))
	if !tryLockTimeout(fl, LockTimeout) {
		return false, errs.New(errs.UpstreamTransient, "timed out acquiring ledger lock")
	}
	defer fl.unlock()

	l, err := s.loadLedgerLocked()
	if err != nil {
		return false, err
	}
	day, ok2 := l.Days[dateKey]
	if !ok2 {
		day = emptyDayLedger()
	}
	if day.AnnouncedTimezoneBucketUserIDs[idempotencyKey] {
		return false, nil
	}
	day.AnnouncedTimezoneBucketUserIDs[idempotencyKey] = true
	l.Days[dateKey] = day
	if err := s.writeJSONLocked(ledgerFile, l); err != nil {
		return false, err
	}
	return true, nil
}

// MarkSpecialDayAnnounced records that an observance was announced today.
func (s *Store) MarkSpecialDayAnnounced(dateKey string, key SpecialDayKey) error {
	fl := lockFor(s.path(ledgerFile))
	if !tryLockTimeout(fl, LockTimeout) {
		return errs.New(errs.UpstreamTransient, "timed out acquiring ledger lock")
	}
	defer fl.unlock()

	l, err := s.loadLedgerLocked()
	if err != nil {
		return err
	}
	day, ok := l.Days[dateKey]
	if !ok {
		day = emptyDayLedger()
	}
	for _, existing := range day.SpecialDaysAnnounced {
		if existing == key {
			return nil
		}
	}
	day.SpecialDaysAnnounced = append(day.SpecialDaysAnnounced, key)
	l.Days[dateKey] = day
	return s.writeJSONLocked(ledgerFile, l)
}

// WasSpecialDayAnnounced reports whether key was already recorded for dateKey.
func (s *Store) WasSpecialDayAnnounced(dateKey string, key SpecialDayKey) (bool, error) {
	l, err := s.LoadLedger()
	if err != nil {
		return false, err
	}
	day, ok := l.Days[dateKey]
	if !ok {
		return false, nil
	}
	for _, existing := range day.SpecialDaysAnnounced {
		if existing == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) loadLedgerLocked() (Ledger, error) {
	var l Ledger
	data, err := readRaw(s.path(ledgerFile))
	if err != nil {
		return Ledger{}, err
	}
	if data != nil {
		if err := unmarshalJSON5(data, &l); err != nil {
			return Ledger{}, errs.Wrap(errs.Fatal, "corrupt ledger", err)
		}
	}
	if l.Days == nil {
		l.Days = map[string]DayLedger{}
	}
	return l, nil
}

// PruneLedger drops date keys older than LedgerRetentionDays relative to
// now (spec §3 retention).
func (s *Store) PruneLedger(now time.Time) error {
	l, err := s.LoadLedger()
	if err != nil {
		return err
	}
	cutoff := now.AddDate(0, 0, -LedgerRetentionDays)
	changed := false
	for key := range l.Days {
		t, err := time.Parse("2006-01-02", key)
		if err != nil {
			continue
		}
		if t.Before(cutoff) {
			delete(l.Days, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveLedger(l)
}
