package domain

// Verdict is the capacity evaluator's answer for a new confirmation.
type Verdict string

const (
	VerdictAccepted   Verdict = "accepted"
	VerdictWaitlisted Verdict = "waitlisted"
	VerdictRejected   Verdict = "rejected"
)

// AttendeeStatus is derived from an entry's position in confirmation order.
type AttendeeStatus string

const (
	AttendeeConfirmed  AttendeeStatus = "confirmed"
	AttendeeWaitlisted AttendeeStatus = "waitlisted"
)

// Evaluate decides whether one more confirmation fits. count is the authoritative number of
// attendance entries; entries beyond capacity are the waitlist.
func Evaluate(capacity *int, waitlistCapacity, count int) Verdict {
	if capacity == nil || count < *capacity {
		return VerdictAccepted
	}
	if count-*capacity < waitlistCapacity {
		return VerdictWaitlisted
	}
	return VerdictRejected
}

// SpotsLeft is max(0, capacity-count).
func SpotsLeft(capacity, count int) int {
	return max(0, capacity-count)
}

// statusAt reports the status of the entry at the given zero-based position.
func statusAt(capacity *int, position int) AttendeeStatus {
	if capacity == nil || position < *capacity {
		return AttendeeConfirmed
	}
	return AttendeeWaitlisted
}

// AttendanceSummary is the derived attendance state of one activity.
type AttendanceSummary struct {
	Count             int  // every attendance entry
	Confirmed         int  // entries within capacity
	Waitlisted        int  // entries beyond capacity
	SpotsLeft         *int // nil when capacity is unlimited
	WaitlistSpotsLeft int
}

func summarize(a Activity, count int) AttendanceSummary {
	summary := AttendanceSummary{Count: count, Confirmed: count}
	if a.Capacity == nil {
		return summary
	}
	capacity := *a.Capacity
	left := SpotsLeft(capacity, count)
	summary.SpotsLeft = &left
	summary.Confirmed = min(count, capacity)
	summary.Waitlisted = count - summary.Confirmed
	summary.WaitlistSpotsLeft = max(0, a.WaitlistCapacity-summary.Waitlisted)
	return summary
}
