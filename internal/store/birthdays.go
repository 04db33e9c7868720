package store

import (
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

// CelebrationStyle is one of the preference variants from spec §3.
type CelebrationStyle string

const (
	StyleQuiet    CelebrationStyle = "quiet"
	StyleStandard CelebrationStyle = "standard"
	StyleEpic     CelebrationStyle = "epic"
)

// Preferences mirrors BirthdayRecord.preferences.
type Preferences struct {
	Active         bool             `json:"active"`
	ImageEnabled   bool             `json:"image_enabled"`
	ShowAge        bool             `json:"show_age"`
	CelebrationStyle CelebrationStyle `json:"celebration_style"`
}

// BirthdayRecord is the canonical per-user birthday entity (spec §3).
type BirthdayRecord struct {
	UserID      string      `json:"-"`
	Month       int         `json:"month"`
	Day         int         `json:"day"`
	Year        *int        `json:"year,omitempty"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

const birthdaysFile = "birthdays.json"

// backupSubdir nests birthdays.json snapshots under storage/backups/
// rather than alongside the live file (spec §6: "backups/birthdays_<timestamp>.json").
const backupSubdir = "backups"

type birthdaysFileShape struct {
	Records map[string]BirthdayRecord `json:"-"`
}

// birthdayWire is the on-disk per-user shape (no redundant user_id key
// inside the value, matching §6's `{user_id: {date, ...}}` layout).
type birthdayWire struct {
	Month       int         `json:"month"`
	Day         int         `json:"day"`
	Year        *int        `json:"year,omitempty"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// LoadBirthdays reads storage/birthdays.json into a user_id-keyed map.
func (s *Store) LoadBirthdays() (map[string]BirthdayRecord, error) {
	raw := map[string]birthdayWire{}
	if _, err := s.ReadJSON(birthdaysFile, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]BirthdayRecord, len(raw))
	for id, w := range raw {
		out[id] = BirthdayRecord{
			UserID: id, Month: w.Month, Day: w.Day, Year: w.Year,
			Preferences: w.Preferences, CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt,
		}
	}
	return out, nil
}

// SaveBirthdays writes the full map back atomically, with a ring-buffer
// backup and (if externalBackup is set by the caller) the caller is
// expected to publish+dashboard-note the result — that's a platform
// concern layered above this package (spec §4.1).
func (s *Store) SaveBirthdays(records map[string]BirthdayRecord, now time.Time) error {
	raw := make(map[string]birthdayWire, len(records))
	for id, r := range records {
		raw[id] = birthdayWire{Month: r.Month, Day: r.Day, Year: r.Year, Preferences: r.Preferences, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	}
	return s.WriteBirthdaysWithBackup(birthdaysFile, backupSubdir, raw, now)
}

// UpsertBirthday inserts or updates a single record under the datastore's
// write lock (read-modify-write the whole file; files are small).
func (s *Store) UpsertBirthday(userID string, rec BirthdayRecord, now time.Time) error {
	if rec.Month < 1 || rec.Month > 12 || rec.Day < 1 || rec.Day > 31 {
		return errs.New(errs.InputInvalid, "invalid calendar date").WithField("month", rec.Month).WithField("day", rec.Day)
	}
	if rec.Year != nil {
		if *rec.Year < 1900 || *rec.Year > now.Year() {
			return errs.New(errs.InputInvalid, "year out of range").WithField("year", *rec.Year)
		}
	}
	records, err := s.LoadBirthdays()
	if err != nil {
		return err
	}
	if existing, ok := records[userID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.UserID = userID
	records[userID] = rec
	return s.SaveBirthdays(records, now)
}

// DeactivateBirthday sets preferences.active=false rather than deleting
// the record (spec §3 lifecycle: "soft: preferences.active=false rather
// than delete").
func (s *Store) DeactivateBirthday(userID string, now time.Time) error {
	records, err := s.LoadBirthdays()
	if err != nil {
		return err
	}
	rec, ok := records[userID]
	if !ok {
		return errs.New(errs.NotFound, "no birthday on file").WithField("user_id", userID)
	}
	rec.Preferences.Active = false
	rec.UpdatedAt = now
	records[userID] = rec
	return s.SaveBirthdays(records, now)
}
