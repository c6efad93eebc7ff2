// Package repo implements the storage layer of the messenger. A single
// façade (Store) accepts a closed set of query shapes and routes them to one
// of two interchangeable backends chosen once at startup:
//
//   - NativeEngine: an embedded SQLite database (gorm + pure-Go driver) that
//     receives each shape's fixed SQL text and positional parameters verbatim.
//   - FallbackEngine: in-memory users/messages collections mirrored to a
//     blob.Store after every mutation, answering the same shapes by hand.
//
// Both backends return the same Result shape, so callers never need to know
// which one is active.
//
// This file defines the query shapes.
package repo

import (
	"fmt"
	"time"
)

// Query is one of the seven supported operation shapes:
//
//	InsertUser, Authenticate, ListContacts,
//	InsertMessage, ListConversation, DeleteMessage, UpdateMessageContent
//
// The set is closed: the interface carries an unexported method, so no other
// package can add a variant. Pass the shapes by value.
type Query interface {
	// Name is a short, stable identifier used in logs, metrics and traces.
	Name() string

	statement() (sql string, args []any, kind stmtKind)
}

type stmtKind int

const (
	stmtRead stmtKind = iota
	stmtInsert
	stmtWrite
)

// InsertUser registers a user. A zero CreatedAt means "now".
type InsertUser struct {
	Username   string
	Password   string
	ProfileURI *string
	CreatedAt  int64
}

// Authenticate selects users matching both username and password exactly.
type Authenticate struct {
	Username string
	Password string
}

// ListContacts selects every user except ExcludeID, ordered by username
// without regard to case.
type ListContacts struct {
	ExcludeID int64
}

// InsertMessage stores a message. A zero CreatedAt means "now".
type InsertMessage struct {
	FromID    int64
	ToID      int64
	Content   string
	CreatedAt int64
}

// ListConversation selects the messages exchanged between UserA and UserB in
// either direction, oldest first.
type ListConversation struct {
	UserA int64
	UserB int64
}

// DeleteMessage removes a message by id.
type DeleteMessage struct {
	ID int64
}

// UpdateMessageContent replaces the content of a message in place.
type UpdateMessageContent struct {
	ID      int64
	Content string
}

func (InsertUser) Name() string           { return "insert_user" }
func (Authenticate) Name() string         { return "authenticate" }
func (ListContacts) Name() string         { return "list_contacts" }
func (InsertMessage) Name() string        { return "insert_message" }
func (ListConversation) Name() string     { return "list_conversation" }
func (DeleteMessage) Name() string        { return "delete_message" }
func (UpdateMessageContent) Name() string { return "update_message" }

func (q InsertUser) statement() (string, []any, stmtKind) {
	var uri any
	if q.ProfileURI != nil {
		uri = *q.ProfileURI
	}
	return `INSERT INTO users (username, password, profile_uri, created_at) VALUES (?, ?, ?, ?) RETURNING id;`,
		[]any{q.Username, q.Password, uri, q.CreatedAt}, stmtInsert
}

func (q Authenticate) statement() (string, []any, stmtKind) {
	return `SELECT id, username, profile_uri FROM users WHERE username = ? AND password = ?;`,
		[]any{q.Username, q.Password}, stmtRead
}

func (q ListContacts) statement() (string, []any, stmtKind) {
	return `SELECT id, username, profile_uri FROM users WHERE id != ? ORDER BY username COLLATE NOCASE, id;`,
		[]any{q.ExcludeID}, stmtRead
}

func (q InsertMessage) statement() (string, []any, stmtKind) {
	return `INSERT INTO messages (from_id, to_id, content, created_at) VALUES (?, ?, ?, ?) RETURNING id;`,
		[]any{q.FromID, q.ToID, q.Content, q.CreatedAt}, stmtInsert
}

func (q ListConversation) statement() (string, []any, stmtKind) {
	return `SELECT id, from_id, to_id, content, created_at FROM messages
		WHERE (from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)
		ORDER BY created_at ASC, id ASC;`,
		[]any{q.UserA, q.UserB, q.UserB, q.UserA}, stmtRead
}

func (q DeleteMessage) statement() (string, []any, stmtKind) {
	return `DELETE FROM messages WHERE id = ?;`, []any{q.ID}, stmtWrite
}

func (q UpdateMessageContent) statement() (string, []any, stmtKind) {
	return `UPDATE messages SET content = ? WHERE id = ?;`, []any{q.Content, q.ID}, stmtWrite
}

// checkShape rejects anything outside the supported set, including nil and
// pointers to the shapes.
func checkShape(q Query) error {
	switch q.(type) {
	case InsertUser, Authenticate, ListContacts,
		InsertMessage, ListConversation, DeleteMessage, UpdateMessageContent:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedQuery, q)
	}
}

// stampCreatedAt fills a zero CreatedAt on the insert shapes with now, in
// epoch milliseconds.
func stampCreatedAt(q Query, now time.Time) Query {
	switch v := q.(type) {
	case InsertUser:
		if v.CreatedAt == 0 {
			v.CreatedAt = now.UnixMilli()
		}
		return v
	case InsertMessage:
		if v.CreatedAt == 0 {
			v.CreatedAt = now.UnixMilli()
		}
		return v
	default:
		return q
	}
}

// queryName tolerates nil and unsupported values, whose methods may not be
// safe to call.
func queryName(q Query) string {
	if checkShape(q) != nil {
		return "unsupported"
	}
	return q.Name()
}
