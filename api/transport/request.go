package transport

// PageMeta describes the window of a paged listing.
type PageMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ValidationMeta accompanies the community listing with the caller's remaining daily votes.
type ValidationMeta struct {
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
	Count     int `json:"count"`
}

// VoteResponse is returned after a validation was recorded.
type VoteResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	ValidationCount int    `json:"validation_count"`
	Remaining       int    `json:"remaining_validations"`
}
