package models

// ClaimResult reports the outcome of one claim batch. The union of Claimed
// and Rejected always equals the requested item ids, and the two are
// disjoint. A fully rejected batch is a normal result, not an error.
type ClaimResult struct {
	// Claimed holds the ids now owned by the requesting nickname,
	// including items it already owned (re-claims are idempotent).
	Claimed []string `json:"claimed"`

	// Rejected holds the ids that were owned by a different nickname at
	// read time or lost a compare-and-set race, plus ids that do not
	// belong to the transaction.
	Rejected []string `json:"rejected"`
}
