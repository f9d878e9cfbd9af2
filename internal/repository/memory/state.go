package memory

import (
	"github.com/google/uuid"
	"github.com/lalith-99/bookshare/internal/models"
)

// Rows are stored by value. Pointer fields inside them (timestamps, ids)
// are replaced, never mutated in place, so a shallow clone is a snapshot.
type state struct {
	users    table[uuid.UUID, models.User]
	books    table[uuid.UUID, models.Book]
	requests table[uuid.UUID, models.BorrowRequest]
	messages table[uuid.UUID, models.Message]
	invites  table[uuid.UUID, models.Invite]
	contacts table[models.ContactPair, models.Contact]
	reviews  table[uuid.UUID, models.Review]
}

func newState() *state {
	return &state{
		users:    newTable[uuid.UUID, models.User](),
		books:    newTable[uuid.UUID, models.Book](),
		requests: newTable[uuid.UUID, models.BorrowRequest](),
		messages: newTable[uuid.UUID, models.Message](),
		invites:  newTable[uuid.UUID, models.Invite](),
		contacts: newTable[models.ContactPair, models.Contact](),
		reviews:  newTable[uuid.UUID, models.Review](),
	}
}

func (st *state) clone() *state {
	return &state{
		users:    st.users.clone(),
		books:    st.books.clone(),
		requests: st.requests.clone(),
		messages: st.messages.clone(),
		invites:  st.invites.clone(),
		contacts: st.contacts.clone(),
		reviews:  st.reviews.clone(),
	}
}

func (st *state) userName(id uuid.UUID) string {
	u, _ := st.users.get(id)
	return u.Name
}

func ptr[T any](v T) *T { return &v }
