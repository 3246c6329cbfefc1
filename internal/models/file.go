package models

import "time"

// FileUpload records bytes handed to the storage collaborator. Fields of type
// file reference the returned URL as their response value.
type FileUpload struct {
	ID             string    `db:"id" json:"id"`
	OrganizationID string    `db:"organization_id" json:"organizationId"`
	SessionID      *string   `db:"session_id" json:"sessionId,omitempty"`
	FileName       string    `db:"file_name" json:"fileName"`
	URL            string    `db:"url" json:"url"`
	FileType       string    `db:"file_type" json:"fileType"`
	SizeBytes      int64     `db:"size_bytes" json:"sizeBytes"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
