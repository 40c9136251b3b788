package model

import "time"

// RecordType classifies a medical record. The set is closed; persistence
// rejects anything else via a CHECK constraint.
type RecordType string

const (
	RecordTypePrescription RecordType = "prescription"
	RecordTypeReport       RecordType = "report"
	RecordTypeBill         RecordType = "bill"
)

// Valid reports whether t is one of the known record types.
func (t RecordType) Valid() bool {
	switch t {
	case RecordTypePrescription, RecordTypeReport, RecordTypeBill:
		return true
	}
	return false
}

// PrincipalKind identifies which kind of principal holds an identity.
type PrincipalKind string

const (
	KindPatient PrincipalKind = "Patient"
	KindDoctor  PrincipalKind = "Doctor"
)

// Valid reports whether k is one of the known principal kinds.
func (k PrincipalKind) Valid() bool {
	return k == KindPatient || k == KindDoctor
}

// AccessGrant delegates read access on a record to a principal.
// A nil ExpiresAt means the grant never expires. Expiry is lazy: an expired
// grant may remain stored but never authorizes anything.
type AccessGrant struct {
	PrincipalID   string        `json:"principal_id"`
	PrincipalKind PrincipalKind `json:"principal_kind"`
	GrantedAt     time.Time     `json:"granted_at"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
}

// MedicalRecord is an uploaded medical document owned by a patient.
// Content is immutable once uploaded; only the Grants list changes afterwards.
// The owner never appears in Grants; ownership is implicit and permanent.
type MedicalRecord struct {
	ID            string        `json:"id"`
	OwnerID       string        `json:"owner_id"`
	RecordType    RecordType    `json:"record_type"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	ContentHandle string        `json:"content_handle"`
	IntegrityHash string        `json:"integrity_hash"`
	UploadedAt    time.Time     `json:"uploaded_at"`
	Grants        []AccessGrant `json:"grants"`
}

// Principal is a directory entry for an identity that can hold record access.
type Principal struct {
	ID   string        `json:"id"`
	Kind PrincipalKind `json:"kind"`
	Name string        `json:"name"`
}

// Notification is a persisted message for a principal.
type Notification struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	Message     string    `json:"message"`
	Category    string    `json:"category"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}
