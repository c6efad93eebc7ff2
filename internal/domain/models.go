// Package domain defines the persistence models for local users and the
// direct messages they exchange. The same types are mapped onto the SQLite
// tables of the native engine and serialised as JSON records by the
// in-memory fallback engine, so field names and tags describe both layouts.
package domain

// User is a locally registered account.
//
// Fields:
//   - ID: monotonically assigned integer key, never reused.
//   - Username: unique, compared case-sensitively.
//   - Password: stored verbatim (demo only, never hashed).
//   - ProfileURI: optional reference to an externally stored image.
//   - CreatedAt: epoch milliseconds; defaults to insertion time.
type User struct {
	ID         int64   `json:"id"          gorm:"column:id;primaryKey;autoIncrement"`
	Username   string  `json:"username"    gorm:"column:username;unique"`
	Password   string  `json:"password"    gorm:"column:password"`
	ProfileURI *string `json:"profile_uri" gorm:"column:profile_uri"`
	CreatedAt  int64   `json:"created_at"  gorm:"column:created_at;autoCreateTime:false"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Message is a direct message from one user to another.
//
// FromID and ToID reference User.ID without referential integrity: deleting
// a user leaves its messages behind. CreatedAt (epoch milliseconds) is the
// only ordering key used when replaying a conversation.
type Message struct {
	ID        int64  `json:"id"         gorm:"column:id;primaryKey;autoIncrement"`
	FromID    int64  `json:"from_id"    gorm:"column:from_id"`
	ToID      int64  `json:"to_id"      gorm:"column:to_id"`
	Content   string `json:"content"    gorm:"column:content"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:false"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Contact is the public projection of a User returned by login and contact
// listing. It never carries the password.
type Contact struct {
	ID         int64   `json:"id"`
	Username   string  `json:"username"`
	ProfileURI *string `json:"profile_uri"`
}

// Between reports whether m belongs to the two-party conversation of a and b,
// in either direction.
func (m Message) Between(a, b int64) bool {
	return (m.FromID == a && m.ToID == b) || (m.FromID == b && m.ToID == a)
}

// Public returns the contact projection of u.
func (u User) Public() Contact {
	return Contact{ID: u.ID, Username: u.Username, ProfileURI: u.ProfileURI}
}
