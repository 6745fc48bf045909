// Package badge contains badge definitions and the pure scoring logic that
// decides how far an athlete is from earning each badge.
//
// Scoring has two layers:
//
//  1. A weighted sum over all enabled rules gives the progress percentage.
//  2. Required rules act as a gate: a badge is earned only when every
//     required rule is satisfied and progress has reached 100.
//
// Example:
//
//	scorer := badge.NewScorer(badge.NewEvaluator(nil))
//	result := scorer.Score(b, snapshot)
//	if result.IsEarned {
//	    // hand over to the award ledger
//	}
//
// Nothing in this package touches storage; the Catalog interface is
// implemented in infrastructure/persistence.
package badge
