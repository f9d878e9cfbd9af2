package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
)

// Every method takes ctx first: each one does I/O, and the request context
// cancels the query when the client goes away.
//
// Reads that find nothing return nil, nil. The service layer turns that into
// a NotFound error with a message that makes sense for the operation.

// ErrDuplicate is returned (wrapped) when an insert violates a uniqueness
// constraint: duplicate email, second pending request for the same book,
// second review of the same loan.
var ErrDuplicate = errors.New("duplicate record")

// UserRepository handles user rows and their aggregate counters.
type UserRepository interface {
	// Create inserts u and fills ID, Rating and CreatedAt.
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// GetByEmail matches the already-normalized (lowercased) email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, patch models.UserPatch) (*models.User, error)

	IncrementBooksShared(ctx context.Context, id uuid.UUID) error
	// DecrementBooksShared never takes the counter below zero.
	DecrementBooksShared(ctx context.Context, id uuid.UUID) error
	IncrementBooksBorrowed(ctx context.Context, id uuid.UUID) error
	// ApplyRating folds one 1..5 review into the running mean.
	ApplyRating(ctx context.Context, id uuid.UUID, rating int) error
}

// BookRepository owns book rows. SetStatus is only called by the lending
// engine and by the catalog after it has checked no loan is active.
type BookRepository interface {
	// Create inserts b and fills ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, b *models.Book) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Book, error)
	// GetForUpdate reads the book and locks its row until the transaction
	// ends. Outside a transaction it behaves like GetByID.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Book, error)
	GetListing(ctx context.Context, id uuid.UUID) (*models.BookListing, error)
	// List returns newest first. Returns an empty slice, never nil.
	List(ctx context.Context, filter models.BookFilter) ([]models.BookListing, error)
	Update(ctx context.Context, id uuid.UUID, patch models.BookPatch) (*models.Book, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.BookStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BorrowRequestRole selects which side of a request a listing is for.
type BorrowRequestRole string

const (
	RoleRequester BorrowRequestRole = "requester"
	RoleOwner     BorrowRequestRole = "owner"
)

// BorrowRequestRepository persists requests. Update writes the status and
// every lifecycle timestamp of r in one statement.
type BorrowRequestRepository interface {
	Create(ctx context.Context, r *models.BorrowRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BorrowRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.BorrowRequest, error)
	GetView(ctx context.Context, id uuid.UUID) (*models.BorrowRequestView, error)
	Update(ctx context.Context, r *models.BorrowRequest) error

	HasPending(ctx context.Context, bookID, requesterID uuid.UUID) (bool, error)
	// HasActive reports whether the book has an approved or borrowed request.
	HasActive(ctx context.Context, bookID uuid.UUID) (bool, error)
	// RejectPending moves every pending request on the book except exceptID
	// to rejected, stamping responded_at. Pass uuid.Nil to reject all.
	RejectPending(ctx context.Context, bookID, exceptID uuid.UUID, at time.Time) (int64, error)
	// ListForBook returns all requests on a book, oldest first.
	ListForBook(ctx context.Context, bookID uuid.UUID) ([]models.BorrowRequest, error)
	// ListForUser returns views newest first for the given side.
	ListForUser(ctx context.Context, userID uuid.UUID, role BorrowRequestRole) ([]models.BorrowRequestView, error)
}

// MessageRepository handles direct messages.
type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	// ListThread returns messages between a and b in either direction, oldest
	// first. bookID narrows the thread when non-nil.
	ListThread(ctx context.Context, a, b uuid.UUID, bookID *uuid.UUID) ([]models.MessageView, error)
	// MarkRead flags as read exactly the unread messages sent by senderID to
	// receiverID.
	MarkRead(ctx context.Context, receiverID, senderID uuid.UUID) (int64, error)
	ListConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	CountUnread(ctx context.Context, receiverID uuid.UUID) (int, error)
}

// InviteRepository handles invite rows.
type InviteRepository interface {
	Create(ctx context.Context, inv *models.Invite) error
	ExistsForEmail(ctx context.Context, inviterID uuid.UUID, email string) (bool, error)
	GetByToken(ctx context.Context, token string) (*models.Invite, error)
	GetByTokenForUpdate(ctx context.Context, token string) (*models.Invite, error)
	GetPreview(ctx context.Context, token string) (*models.InvitePreview, error)
	MarkAccepted(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	ListByInviter(ctx context.Context, inviterID uuid.UUID) ([]models.InviteView, error)
}

// ContactRepository stores undirected edges keyed by canonical pair.
type ContactRepository interface {
	// Ensure inserts the pair unless it already exists. created is false when
	// the edge was already there.
	Ensure(ctx context.Context, pair models.ContactPair) (created bool, err error)
	Exists(ctx context.Context, pair models.ContactPair) (bool, error)
	// ListForUser returns the other side of every edge touching userID,
	// ordered by name.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ContactView, error)
}

// ReviewRepository handles post-loan reviews.
type ReviewRepository interface {
	Create(ctx context.Context, r *models.Review) error
	Exists(ctx context.Context, reviewerID, borrowRequestID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, reviewedID uuid.UUID) ([]models.ReviewView, error)
}

// Repos bundles one repository per table, all bound to the same connection
// or transaction.
type Repos struct {
	Users    UserRepository
	Books    BookRepository
	Requests BorrowRequestRepository
	Messages MessageRepository
	Invites  InviteRepository
	Contacts ContactRepository
	Reviews  ReviewRepository
}

// Store is the datastore as seen by the services.
//
// Repos returns repositories that run each call on its own. WithinTx runs fn
// with repositories bound to a single transaction: if fn returns an error
// nothing it wrote is kept, otherwise everything is committed together.
// Multi-row lifecycle transitions always go through WithinTx.
type Store interface {
	Repos() Repos
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}
