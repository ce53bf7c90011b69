package domain

import "time"

// LimitInfo describes the daily recording quota at a point in time.
type LimitInfo struct {
	UsedToday int
	MaxDaily  int
	Remaining int
	ResetTime time.Time
}

// utcDay truncates t to midnight UTC.
func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// QuotaResetDue reports whether the UTC calendar date of now is after that of the last reset.
func (u *User) QuotaResetDue(now time.Time) bool {
	return utcDay(now).After(utcDay(u.LastRecordReset))
}

// NextQuotaReset returns the next UTC midnight after the last reset.
func (u *User) NextQuotaReset() time.Time {
	return utcDay(u.LastRecordReset).AddDate(0, 0, 1)
}

// Limits returns quota usage as of now. A counter from a previous UTC day reads as zero.
func (u *User) Limits(now time.Time) LimitInfo {
	used := u.DailyRecordsUsed
	reset := u.NextQuotaReset()
	if u.QuotaResetDue(now) {
		used = 0
		reset = utcDay(now).AddDate(0, 0, 1)
	}
	remaining := u.MaxDailyRecords - used
	if remaining < 0 {
		remaining = 0
	}
	return LimitInfo{UsedToday: used, MaxDaily: u.MaxDailyRecords, Remaining: remaining, ResetTime: reset}
}

// ConsumeRecord applies one recording to the quota, resetting the counter first when the UTC
// date advanced. Returns ErrDailyLimitReached and leaves u unchanged at the cap.
func (u *User) ConsumeRecord(now time.Time) error {
	used, last := u.DailyRecordsUsed, u.LastRecordReset
	if u.QuotaResetDue(now) {
		used, last = 0, now.UTC()
	}
	if used >= u.MaxDailyRecords {
		return ErrDailyLimitReached
	}
	u.DailyRecordsUsed, u.LastRecordReset = used+1, last
	return nil
}
