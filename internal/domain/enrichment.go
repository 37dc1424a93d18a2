package domain

// EnrichmentResult is what the classifier derives from a ticket.
type EnrichmentResult struct {
	Sentiment      *Sentiment
	SentimentScore *float64
	Priority       *TicketPriority
	Category       *string
	Language       *string
	Summary        *string
}

// Empty reports whether the result carries nothing to apply.
func (r EnrichmentResult) Empty() bool {
	return r.Sentiment == nil && r.SentimentScore == nil && r.Priority == nil &&
		r.Category == nil && r.Language == nil && r.Summary == nil
}
