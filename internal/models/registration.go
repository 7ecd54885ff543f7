package models

import "time"

// Registration represents a completed registration attempt in the system
type Registration struct {
	ID              string     `db:"id"`
	FullName        string     `db:"full_name"`
	Email           string     `db:"email"`
	WhatsappNumber  *string    `db:"whatsapp_number"`
	LinkedinURL     *string    `db:"linkedin_url"`
	ResumePath      *string    `db:"resume_path"`
	IsWaitlist      bool       `db:"is_waitlist"`
	AccessTokenHash string     `db:"access_token_hash"`
	CreatedAt       time.Time  `db:"created_at"`
	CancelledAt     *time.Time `db:"cancelled_at"`
}

// Cancelled reports whether the registration has been self-cancelled.
func (r *Registration) Cancelled() bool {
	return r.CancelledAt != nil
}

// RegistrationStats aggregates headline numbers for the admin dashboard
type RegistrationStats struct {
	Total        int64 `json:"total"`
	Waitlisted   int64 `json:"waitlisted"`
	Cancelled    int64 `json:"cancelled"`
	Violations24 int64 `json:"violations_24h"`
	ActiveBlocks int64 `json:"active_blocks"`
}
