// Package monetization holds paid access events: one-time unlocks and
// timed subscriptions, plus the fixed revenue split.
package monetization

// Split percentages of every monetization event
const (
	CreatorPercent  = 70
	PlatformPercent = 25
	FeePercent      = 5
)

// Split is the three-way division of an amount.
// CreatorShare + PlatformShare + ProcessingFee always equals the amount.
type Split struct {
	CreatorShare  int64 `json:"creator_share"`
	PlatformShare int64 `json:"platform_share"`
	ProcessingFee int64 `json:"processing_fee"`
}

// Total is the sum of the three shares
func (s Split) Total() int64 {
	return s.CreatorShare + s.PlatformShare + s.ProcessingFee
}

// ComputeSplit floors each share and gives the rounding remainder to the creator
func ComputeSplit(amount int64) Split {
	s := Split{
		CreatorShare:  amount * CreatorPercent / 100,
		PlatformShare: amount * PlatformPercent / 100,
		ProcessingFee: amount * FeePercent / 100,
	}
	s.CreatorShare += amount - s.Total()
	return s
}
