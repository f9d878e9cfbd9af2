package models

// BookStatus is the availability of a book. Exactly one value holds at any
// time.
type BookStatus string

const (
	BookAvailable BookStatus = "available"
	BookReserved  BookStatus = "reserved"
	BookBorrowed  BookStatus = "borrowed"
)

func (s BookStatus) Valid() bool {
	switch s {
	case BookAvailable, BookReserved, BookBorrowed:
		return true
	}
	return false
}

// RequestStatus is the lifecycle position of a BorrowRequest.
//
//	pending ──approve──▶ approved ──mark_borrowed──▶ borrowed ──mark_returned──▶ returned
//	   │
//	   └──reject──▶ rejected
//
// There are no back-transitions.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestBorrowed RequestStatus = "borrowed"
	RequestReturned RequestStatus = "returned"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestBorrowed, RequestReturned:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestReturned
}

// InviteStatus tracks how an invite was resolved.
//
//   - pending:  waiting for the invitee to register and redeem the token
//   - joined:   the email already belonged to a user when the invite was sent
//   - accepted: a user redeemed the token
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteJoined   InviteStatus = "joined"
	InviteAccepted InviteStatus = "accepted"
)
