package core

// AggregationResult is the outcome of one ledger query. Exactly one of
// Total and Err is set; build it with Sum or Failure.
type AggregationResult struct {
	Total *Money
	Err   string
}

// Sum returns a successful result. A zero total means the period had no records.
func Sum(total Money) AggregationResult {
	return AggregationResult{Total: &total}
}

// Failure returns a failed result carrying a user-presentable message.
func Failure(msg string) AggregationResult {
	if msg == "" {
		msg = "erro desconhecido"
	}
	return AggregationResult{Err: msg}
}

func (r AggregationResult) Failed() bool {
	return r.Err != ""
}
