package models

import "time"

// UploadTicket is the token half of the deferred-upload handshake for large
// files: the client reserves a ticket, then streams the file against the
// token. A ticket is single-use and expires unconsumed.
type UploadTicket struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	TenantID string `gorm:"type:uuid;index;not null" json:"tenantId"`
	Token    string `gorm:"type:uuid;uniqueIndex;not null" json:"token"`

	FileName      string `gorm:"not null" json:"fileName"`
	ExpectedBytes int64  `json:"expectedBytes"`

	Consumed  bool      `gorm:"default:false" json:"consumed"`
	ExpiresAt time.Time `json:"expiresAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for UploadTicket model
func (UploadTicket) TableName() string {
	return "upload_tickets"
}

// Usable reports whether the ticket can still accept an upload.
func (t *UploadTicket) Usable(now time.Time) bool {
	return !t.Consumed && now.Before(t.ExpiresAt)
}
