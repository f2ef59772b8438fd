package domain

// Journey is the user's three-question emotional request: the overall
// character of the session, where they are now, and where they want to end up.
// Journeys are created per request and only persisted inside feedback records.
type Journey struct {
	Vibe  string `json:"vibe" validate:"required,min=1"`
	Now   string `json:"now" validate:"required,min=1"`
	Going string `json:"going" validate:"required,min=1"`
}
