package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered member of the lending network.
//
// PasswordHash never leaves the server: it is tagged json:"-" so a User can
// be returned from handlers directly. Location fields are whatever the user
// last entered on their profile; books copy them at creation time.
type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Bio           string    `json:"bio"`
	AvatarURL     string    `json:"avatar_url"`
	City          string    `json:"city"`
	Neighborhood  string    `json:"neighborhood"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	BooksShared   int       `json:"books_shared"`
	BooksBorrowed int       `json:"books_borrowed"`
	Rating        float64   `json:"rating"`
	RatingCount   int       `json:"rating_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// DefaultRating is what every user starts with before the first review.
const DefaultRating = 5.0

// PublicProfile is a User without the email address.
type PublicProfile struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Bio           string    `json:"bio"`
	AvatarURL     string    `json:"avatar_url"`
	City          string    `json:"city"`
	Neighborhood  string    `json:"neighborhood"`
	Lat           float64   `json:"lat"`
	Lng           float64   `json:"lng"`
	BooksShared   int       `json:"books_shared"`
	BooksBorrowed int       `json:"books_borrowed"`
	Rating        float64   `json:"rating"`
	RatingCount   int       `json:"rating_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:            u.ID,
		Name:          u.Name,
		Bio:           u.Bio,
		AvatarURL:     u.AvatarURL,
		City:          u.City,
		Neighborhood:  u.Neighborhood,
		Lat:           u.Lat,
		Lng:           u.Lng,
		BooksShared:   u.BooksShared,
		BooksBorrowed: u.BooksBorrowed,
		Rating:        u.Rating,
		RatingCount:   u.RatingCount,
		CreatedAt:     u.CreatedAt,
	}
}

// UserSummary is the small slice of a user embedded in other responses.
type UserSummary struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	AvatarURL    string    `json:"avatar_url"`
	City         string    `json:"city,omitempty"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	BooksShared  int       `json:"books_shared"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:           u.ID,
		Name:         u.Name,
		AvatarURL:    u.AvatarURL,
		City:         u.City,
		Neighborhood: u.Neighborhood,
		BooksShared:  u.BooksShared,
	}
}

// UserPatch carries the profile fields a user may change about themselves.
// A nil field is left untouched.
type UserPatch struct {
	Name         *string
	Bio          *string
	AvatarURL    *string
	City         *string
	Neighborhood *string
	Lat          *float64
	Lng          *float64
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Bio == nil && p.AvatarURL == nil && p.City == nil &&
		p.Neighborhood == nil && p.Lat == nil && p.Lng == nil
}

// Book is a physical copy a user offers for lending.
//
// Status mirrors the lifecycle of the book's borrow requests:
//   - available: no approved or borrowed request exists
//   - reserved:  one request is approved and waiting for hand-over
//   - borrowed:  one request is borrowed
//
// Lat/Lng/City/Neighborhood are a snapshot of the owner's location taken when
// the book was listed.
type Book struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	ISBN          string     `json:"isbn"`
	CoverURL      string     `json:"cover_url"`
	Description   string     `json:"description"`
	Genre         string     `json:"genre"`
	Language      string     `json:"language"`
	Condition     string     `json:"condition"`
	Status        BookStatus `json:"status"`
	MaxBorrowDays int        `json:"max_borrow_days"`
	Lat           float64    `json:"lat"`
	Lng           float64    `json:"lng"`
	City          string     `json:"city"`
	Neighborhood  string     `json:"neighborhood"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BookListing is a Book joined with its owner, as shown in the catalog.
// DistanceKm is only set when the caller supplied coordinates and the owner
// has a known location.
type BookListing struct {
	Book
	OwnerName         string   `json:"owner_name"`
	OwnerCity         string   `json:"owner_city"`
	OwnerNeighborhood string   `json:"owner_neighborhood"`
	OwnerAvatar       string   `json:"owner_avatar"`
	OwnerBio          string   `json:"owner_bio"`
	OwnerRating       float64  `json:"owner_rating"`
	OwnerBooksShared  int      `json:"owner_books_shared"`
	OwnerLat          float64  `json:"owner_lat"`
	OwnerLng          float64  `json:"owner_lng"`
	DistanceKm        *float64 `json:"distance_km"`
}

// BookFilter narrows a catalog listing. Zero values mean "no filter".
type BookFilter struct {
	Query   string
	Genre   string
	Status  BookStatus
	OwnerID uuid.UUID
}

// BookPatch carries owner-editable book fields. Status is validated by the
// catalog before it reaches the repository.
type BookPatch struct {
	Title         *string
	Author        *string
	Description   *string
	Genre         *string
	Condition     *string
	Language      *string
	CoverURL      *string
	MaxBorrowDays *int
	Status        *BookStatus
}

func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Description == nil && p.Genre == nil &&
		p.Condition == nil && p.Language == nil && p.CoverURL == nil &&
		p.MaxBorrowDays == nil && p.Status == nil
}

// BorrowRequest is one user's proposal to borrow one book.
// OwnerID is copied from the book when the request is created.
type BorrowRequest struct {
	ID          uuid.UUID     `json:"id"`
	BookID      uuid.UUID     `json:"book_id"`
	RequesterID uuid.UUID     `json:"requester_id"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	Status      RequestStatus `json:"status"`
	Message     string        `json:"message"`
	BorrowDays  int           `json:"borrow_days"`
	RequestedAt time.Time     `json:"requested_at"`
	RespondedAt *time.Time    `json:"responded_at"`
	BorrowedAt  *time.Time    `json:"borrowed_at"`
	DueDate     *Date         `json:"due_date"`
	ReturnedAt  *time.Time    `json:"returned_at"`
}

// BorrowRequestView is a request joined with its book and both parties.
type BorrowRequestView struct {
	BorrowRequest
	BookTitle     string `json:"book_title"`
	BookCover     string `json:"book_cover"`
	RequesterName string `json:"requester_name"`
	OwnerName     string `json:"owner_name"`
	Overdue       bool   `json:"overdue"`
}

// Message is a direct message between two users, optionally tagged with the
// book or borrow request it is about.
type Message struct {
	ID              uuid.UUID  `json:"id"`
	SenderID        uuid.UUID  `json:"sender_id"`
	ReceiverID      uuid.UUID  `json:"receiver_id"`
	BookID          *uuid.UUID `json:"book_id"`
	BorrowRequestID *uuid.UUID `json:"borrow_request_id"`
	Content         string     `json:"content"`
	Read            bool       `json:"read"`
	CreatedAt       time.Time  `json:"created_at"`
}

type MessageView struct {
	Message
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar"`
}

// Conversation is one inbox row: the latest message exchanged with a
// counterpart plus how many of their messages the caller has not read.
type Conversation struct {
	LastMessage Message   `json:"last_message"`
	OtherID     uuid.UUID `json:"other_id"`
	OtherName   string    `json:"other_name"`
	OtherAvatar string    `json:"other_avatar"`
	BookTitle   string    `json:"book_title"`
	UnreadCount int       `json:"unread_count"`
}

// Invite is an outbound invitation from a user to an email address.
// Token is empty for invites that were resolved to an existing account at
// creation time (status joined).
type Invite struct {
	ID            uuid.UUID    `json:"id"`
	InviterID     uuid.UUID    `json:"inviter_id"`
	Email         string       `json:"email"`
	Token         string       `json:"token,omitempty"`
	Status        InviteStatus `json:"status"`
	InvitedUserID *uuid.UUID   `json:"invited_user_id"`
	CreatedAt     time.Time    `json:"created_at"`
	AcceptedAt    *time.Time   `json:"accepted_at"`
}

type InviteView struct {
	Invite
	InvitedName   string `json:"invited_name"`
	InvitedAvatar string `json:"invited_avatar"`
	InvitedCity   string `json:"invited_city"`
}

// InvitePreview is what an invite link reveals before the visitor registers.
type InvitePreview struct {
	Email       string       `json:"email"`
	Status      InviteStatus `json:"status"`
	InviterName string       `json:"inviter_name"`
	InviterCity string       `json:"inviter_city"`
	BooksShared int          `json:"books_shared"`
}

// Contact is an undirected edge between two users. UserA always sorts before
// UserB (see CanonicalPair), so one row represents both directions.
type Contact struct {
	ID        uuid.UUID `json:"id"`
	UserA     uuid.UUID `json:"user_a"`
	UserB     uuid.UUID `json:"user_b"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactView is a contact as seen from one side of the edge.
type ContactView struct {
	ContactID     uuid.UUID `json:"contact_id"`
	Name          string    `json:"name"`
	City          string    `json:"city"`
	Neighborhood  string    `json:"neighborhood"`
	AvatarURL     string    `json:"avatar_url"`
	Rating        float64   `json:"rating"`
	BooksShared   int       `json:"books_shared"`
	BooksBorrowed int       `json:"books_borrowed"`
	ConnectedAt   time.Time `json:"connected_at"`
}

// Review is left by one party of a returned loan about the other party.
type Review struct {
	ID              uuid.UUID `json:"id"`
	ReviewerID      uuid.UUID `json:"reviewer_id"`
	ReviewedID      uuid.UUID `json:"reviewed_id"`
	BorrowRequestID uuid.UUID `json:"borrow_request_id"`
	Rating          int       `json:"rating"`
	Comment         string    `json:"comment"`
	CreatedAt       time.Time `json:"created_at"`
}

type ReviewView struct {
	Review
	ReviewerName   string `json:"reviewer_name"`
	ReviewerAvatar string `json:"reviewer_avatar"`
	BookTitle      string `json:"book_title"`
}
