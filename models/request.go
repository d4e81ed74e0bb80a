// models/request.go
package models

import "time"

const (
	RequestTable     = "agp_requests"
	RequestItemTable = "agp_request_items"
)

// RequestStatus is the lifecycle state of a custody request.
//
//	PENDING -> APPROVED | REJECTED | CANCELLED
//	APPROVED -> RETURNED (after gate verification), CHECKED_OUT accepted
//	as an intermediate exit-confirmed state.
//	REJECTED / RETURNED / CANCELLED are terminal.
type RequestStatus string

const (
	RequestPending    RequestStatus = "PENDING"
	RequestApproved   RequestStatus = "APPROVED"
	RequestRejected   RequestStatus = "REJECTED"
	RequestCheckedOut RequestStatus = "CHECKED_OUT"
	RequestReturned   RequestStatus = "RETURNED"
	RequestCancelled  RequestStatus = "CANCELLED"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected,
		RequestCheckedOut, RequestReturned, RequestCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s RequestStatus) Terminal() bool {
	switch s {
	case RequestRejected, RequestReturned, RequestCancelled:
		return true
	case RequestPending, RequestApproved, RequestCheckedOut:
		return false
	}
	return false
}

// Open is the complement of Terminal for known statuses. An open request
// holds its assets against double-booking at submit time.
func (s RequestStatus) Open() bool { return s.Valid() && !s.Terminal() }

// ExitEligible reports whether a guard may act on the request at the gate.
func (s RequestStatus) ExitEligible() bool {
	return s == RequestApproved || s == RequestCheckedOut
}

// CanDecide / CanCancel: admin decision and owner cancellation are both
// PENDING-only transitions.
func (s RequestStatus) CanDecide() bool { return s == RequestPending }
func (s RequestStatus) CanCancel() bool { return s == RequestPending }

// OpenStatuses is the SQL-side mirror of Open(), for WHERE ... IN clauses.
var OpenStatuses = []RequestStatus{RequestPending, RequestApproved, RequestCheckedOut}

// ExitEligibleStatuses mirrors ExitEligible().
var ExitEligibleStatuses = []RequestStatus{RequestApproved, RequestCheckedOut}

// Request is the workflow row. User and asset data are never denormalized
// onto it; reads go through db.RequestView which re-joins the live tables.
type Request struct {
	ID          string        `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID string        `gorm:"type:uuid;index;not null" json:"requesterId"`
	Status      RequestStatus `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	Purpose     string        `gorm:"size:500;not null" json:"purpose"`
	RequestDate time.Time     `gorm:"not null" json:"requestDate"`
	ReturnDate  *time.Time    `json:"returnDate,omitempty"`

	// Approval / rejection metadata: exactly one side is ever set once the
	// request leaves PENDING through an admin decision.
	ApprovedBy      *string    `gorm:"type:uuid" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectedBy      *string    `gorm:"type:uuid" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RejectionReason *string    `gorm:"size:500" json:"rejectionReason,omitempty"`

	CancelNote  *string    `gorm:"size:500" json:"cancelNote,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`

	// Gate metadata. GatePassCode is set iff the request has ever been
	// approved; GateVerified flips false->true at most once.
	GatePassCode   *string    `gorm:"size:12" json:"gatePassCode,omitempty"`
	GateVerified   bool       `gorm:"not null;default:false" json:"gateVerified"`
	GateVerifiedBy *string    `gorm:"type:uuid" json:"gateVerifiedBy,omitempty"`
	GateVerifiedAt *time.Time `json:"gateVerifiedAt,omitempty"`
	GateComment    *string    `gorm:"size:500" json:"gateComment,omitempty"`

	// Evidence references are opaque to the core (URL or storage key).
	CheckoutPhotoRef *string `gorm:"size:500" json:"checkoutPhotoRef,omitempty"`
	ReturnPhotoRef   *string `gorm:"size:500" json:"returnPhotoRef,omitempty"`
	EvidenceMIME     *string `gorm:"size:100" json:"evidenceMime,omitempty"`
	MissingItemsNote *string `gorm:"size:1000" json:"missingItemsNote,omitempty"`

	ReturnedAt *time.Time `gorm:"index" json:"returnedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Request) TableName() string { return RequestTable }

// RequestItem links a request to one asset. Position preserves the order
// the requester listed the assets in.
type RequestItem struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	RequestID string `gorm:"type:uuid;index;not null" json:"requestId"`
	AssetID   string `gorm:"type:uuid;index;not null" json:"assetId"`
	Position  int    `gorm:"not null" json:"position"`
}

func (RequestItem) TableName() string { return RequestItemTable }
