package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/observance"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// emitSpecialDays implements spec §4.9's special-day emission: once per
// day (daily mode) or once per week on the configured weekday (weekly
// mode), fetch the relevant observances and post whichever haven't
// already been announced for today's ledger key.
func (s *Scheduler) emitSpecialDays(ctx context.Context, now time.Time, dateKey string) error {
	if s.aggregator == nil {
		return nil
	}
	if s.specialDaysMode == "weekly" {
		if int(now.Weekday()) != s.cfg.WeeklyDigestWeekday {
			return nil
		}
		dates := make([]string, 0, 7)
		for i := 0; i < 7; i++ {
			dates = append(dates, now.AddDate(0, 0, i).Format("01-02"))
		}
		days := s.aggregator.LookupRange(dates)
		return s.postSpecialDays(ctx, dateKey, days, true)
	}
	days := s.aggregator.Lookup(now.Format("01-02"))
	return s.postSpecialDays(ctx, dateKey, days, false)
}

func (s *Scheduler) postSpecialDays(ctx context.Context, dateKey string, days []observance.SpecialDay, weekly bool) error {
	if len(days) == 0 || s.platform == nil {
		return nil
	}

	var unannounced []observance.SpecialDay
	for _, d := range days {
		key := store.SpecialDayKey{Date: d.DateMMDD, Name: d.Name, Source: string(d.Source)}
		was, err := s.st.WasSpecialDayAnnounced(dateKey, key)
		if err != nil {
			s.log.Warn().Err(err).Str("name", d.Name).Msg("ledger check failed for special day, skipping")
			continue
		}
		if !was {
			unannounced = append(unannounced, d)
		}
	}
	if len(unannounced) == 0 {
		return nil
	}

	blocks := buildSpecialDayBlocks(unannounced, weekly)
	if _, err := s.platform.PostMessage(ctx, s.channel, "", blocks); err != nil {
		return err
	}
	for _, d := range unannounced {
		key := store.SpecialDayKey{Date: d.DateMMDD, Name: d.Name, Source: string(d.Source)}
		if err := s.st.MarkSpecialDayAnnounced(dateKey, key); err != nil {
			s.log.Warn().Err(err).Str("name", d.Name).Msg("failed to mark special day announced")
		}
	}
	return nil
}

// buildSpecialDayBlocks composes the rich-message shape for a digest: a
// header, one field per observance, and a contextual footer — no images
// by default (spec §4.9).
func buildSpecialDayBlocks(days []observance.SpecialDay, weekly bool) []platform.Block {
	header := "🌍 Today's Special Days"
	if weekly {
		header = "🌍 This Week's Special Days"
	}
	fields := make([]string, 0, len(days))
	for _, d := range days {
		emoji := d.Emoji
		if emoji == "" {
			emoji = "📅"
		}
		fields = append(fields, fmt.Sprintf("%s *%s* (%s) — %s", emoji, d.Name, d.DateMMDD, d.Description))
	}
	return []platform.Block{
		platform.Header(header),
		platform.Fields(fields...),
		platform.Divider(),
		platform.Context(fmt.Sprintf("%d observance(s)", len(days))),
	}
}
