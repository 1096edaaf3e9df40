// README: Driver rating counters and the rider's verdict.
package rating

import "newber/internal/types"

const Collection = "ratings"

type Rating struct {
	DriverID  types.ID
	Upvotes   int64
	Downvotes int64
}

// Score is the upvote percentage. A driver with no votes scores 0, not "unrated".
func (r Rating) Score() float64 {
	total := r.Upvotes + r.Downvotes
	if total == 0 {
		return 0
	}
	return float64(r.Upvotes) / float64(total) * 100
}

type Verdict string

const (
	ThumbsUp   Verdict = "up"
	ThumbsDown Verdict = "down"
)

func ParseVerdict(s string) (Verdict, bool) {
	switch Verdict(s) {
	case ThumbsUp, ThumbsDown:
		return Verdict(s), true
	}
	return "", false
}

func (v Verdict) field() string {
	if v == ThumbsUp {
		return "upvotes"
	}
	return "downvotes"
}
