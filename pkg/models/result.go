package models

// Estimate is the success payload returned to the caller.
type Estimate struct {
	ProjectType     ProjectType `json:"project_type"`
	PageList        []string    `json:"page_list"`
	PageCount       int         `json:"page_count"`
	TimelineBucket  string      `json:"timeline_bucket"`
	BudgetBucket    string      `json:"budget_bucket"`
	Explanation     string      `json:"explanation"`
	ServedFromCache bool        `json:"served_from_cache"`
}

// Result is the envelope returned by the suggestion engine. Exactly one of
// Estimate or Message is set.
type Result struct {
	Success  bool      `json:"success"`
	Estimate *Estimate `json:"estimate,omitempty"`
	Message  string    `json:"message,omitempty"`

	// Err classifies a failure for the transport layer.
	Err error `json:"-"`
}

// Succeeded wraps an estimate in a success envelope.
func Succeeded(e Estimate) Result {
	return Result{Success: true, Estimate: &e}
}

// Failed builds a failure envelope carrying a user-facing message.
func Failed(err error, message string) Result {
	return Result{Success: false, Message: message, Err: err}
}
