package repo

import (
	"strconv"

	"github.com/tbourn/go-local-messenger/internal/domain"
)

// Result is the uniform outcome of Store.Execute, produced identically by
// both backends.
//
//   - Rows: result rows for the select shapes (empty for writes).
//   - InsertID: id assigned by InsertUser / InsertMessage, else 0.
//   - RowsAffected: rows written by insert/update/delete, else 0.
type Result struct {
	Rows         Rows
	InsertID     int64
	RowsAffected int64
}

// Rows is an indexable sequence of result rows.
type Rows []Row

// Len returns the number of rows.
func (r Rows) Len() int { return len(r) }

// Item returns row i, or nil when i is out of range.
func (r Rows) Item(i int) Row {
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

// Row maps column names to values. Integers are int64, text is string and
// SQL NULL is nil, whichever backend produced the row.
type Row map[string]any

// Int64 returns column col as an integer, or 0 when absent or NULL.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// String returns column col as text, or "" when absent or NULL.
func (r Row) String(col string) string {
	if s := r.NullString(col); s != nil {
		return *s
	}
	return ""
}

// NullString returns column col as text, or nil when absent or NULL.
func (r Row) NullString(col string) *string {
	switch v := r[col].(type) {
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	case *string:
		return v
	default:
		return nil
	}
}

// ContactFromRow decodes a row of the Authenticate / ListContacts shapes.
func ContactFromRow(r Row) domain.Contact {
	return domain.Contact{
		ID:         r.Int64("id"),
		Username:   r.String("username"),
		ProfileURI: r.NullString("profile_uri"),
	}
}

// MessageFromRow decodes a row of the ListConversation shape.
func MessageFromRow(r Row) domain.Message {
	return domain.Message{
		ID:        r.Int64("id"),
		FromID:    r.Int64("from_id"),
		ToID:      r.Int64("to_id"),
		Content:   r.String("content"),
		CreatedAt: r.Int64("created_at"),
	}
}

// Contacts decodes every row with ContactFromRow.
func (r Rows) Contacts() []domain.Contact {
	out := make([]domain.Contact, 0, len(r))
	for _, row := range r {
		out = append(out, ContactFromRow(row))
	}
	return out
}

// Messages decodes every row with MessageFromRow.
func (r Rows) Messages() []domain.Message {
	out := make([]domain.Message, 0, len(r))
	for _, row := range r {
		out = append(out, MessageFromRow(row))
	}
	return out
}

func contactRow(u domain.User) Row {
	var uri any
	if u.ProfileURI != nil {
		uri = *u.ProfileURI
	}
	return Row{"id": u.ID, "username": u.Username, "profile_uri": uri}
}

func messageRow(m domain.Message) Row {
	return Row{
		"id":         m.ID,
		"from_id":    m.FromID,
		"to_id":      m.ToID,
		"content":    m.Content,
		"created_at": m.CreatedAt,
	}
}
