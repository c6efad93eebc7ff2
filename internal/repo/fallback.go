package repo

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"

	"github.com/tbourn/go-local-messenger/internal/blob"
	"github.com/tbourn/go-local-messenger/internal/domain"
)

// Blob keys holding the two serialized collections.
const (
	UsersKey    = "@messenger_users"
	MessagesKey = "@messenger_messages"
)

// FallbackOptions configures a FallbackEngine.
type FallbackOptions struct {
	// StrictPersist makes a failed blob write fail the whole operation and
	// leaves memory untouched. By default the failure is only logged and the
	// mutation stands.
	StrictPersist bool

	// Now overrides the clock used for default timestamps.
	Now func() time.Time
}

// FallbackEngine answers the supported query shapes against in-memory
// collections and writes them through to a blob.Store after every mutation.
//
// All state is owned by the engine and guarded by one mutex, so every
// operation (including check-then-insert) runs atomically with respect to
// the others. Persistence happens inside the critical section, before the
// operation returns.
type FallbackEngine struct {
	blobs  blob.Store
	strict bool
	now    func() time.Time
	log    zerolog.Logger

	startOnce sync.Once
	loaded    chan struct{}

	mu            sync.Mutex
	users         []domain.User
	messages      []domain.Message
	nextUserID    int64
	nextMessageID int64
}

// NewFallbackEngine returns an engine over blobs. Collections are loaded
// lazily: by Start, or by the first Execute.
func NewFallbackEngine(blobs blob.Store, opts FallbackOptions) *FallbackEngine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &FallbackEngine{
		blobs:         blobs,
		strict:        opts.StrictPersist,
		now:           now,
		log:           log.With().Str("component", "fallback").Logger(),
		loaded:        make(chan struct{}),
		nextUserID:    1,
		nextMessageID: 1,
	}
}

// Kind implements Backend.
func (e *FallbackEngine) Kind() BackendKind { return BackendFallback }

// Start begins loading the persisted collections in the background and
// returns immediately. Calling it more than once has no further effect.
// The load is not tied to ctx cancellation.
func (e *FallbackEngine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		ctx := context.WithoutCancel(ctx)
		go func() {
			defer close(e.loaded)
			e.load(ctx)
		}()
	})
}

// wait starts the load if needed and blocks until it has finished.
func (e *FallbackEngine) wait(ctx context.Context) error {
	e.Start(ctx)
	select {
	case <-e.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// load reads both collections. A missing key yields an empty collection. A
// collection that cannot be read or decoded is logged and starts empty; the
// other collection is kept.
func (e *FallbackEngine) load(ctx context.Context) {
	users, err := readCollection[domain.User](ctx, e.blobs, UsersKey)
	if err != nil {
		e.log.Error().Err(err).Str("key", UsersKey).Msg("load users failed; starting empty")
		users = nil
	}
	messages, err := readCollection[domain.Message](ctx, e.blobs, MessagesKey)
	if err != nil {
		e.log.Error().Err(err).Str("key", MessagesKey).Msg("load messages failed; starting empty")
		messages = nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.users = users
	e.messages = messages
	e.nextUserID = nextID(users, func(u domain.User) int64 { return u.ID })
	e.nextMessageID = nextID(messages, func(m domain.Message) int64 { return m.ID })

	e.log.Info().
		Int("users", len(users)).
		Int("messages", len(messages)).
		Msg("fallback collections loaded")
}

func readCollection[T any](ctx context.Context, s blob.Store, key string) ([]T, error) {
	data, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found || len(data) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

// nextID returns max(id)+1, or 1 for an empty collection.
func nextID[T any](items []T, id func(T) int64) int64 {
	var max int64
	for _, it := range items {
		if v := id(it); v > max {
			max = v
		}
	}
	return max + 1
}

// Execute implements Backend.
func (e *FallbackEngine) Execute(ctx context.Context, q Query) (*Result, error) {
	if err := checkShape(q); err != nil {
		return nil, err
	}
	if err := e.wait(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Once the critical section starts the operation runs to completion.
	ctx = context.WithoutCancel(ctx)

	switch q := stampCreatedAt(q, e.now()).(type) {
	case InsertUser:
		return e.insertUser(ctx, q)
	case Authenticate:
		return e.authenticate(q), nil
	case ListContacts:
		return e.listContacts(q), nil
	case InsertMessage:
		return e.insertMessage(ctx, q)
	case ListConversation:
		return e.listConversation(q), nil
	case DeleteMessage:
		return e.deleteMessage(ctx, q)
	case UpdateMessageContent:
		return e.updateMessage(ctx, q)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedQuery, q)
	}
}

func (e *FallbackEngine) insertUser(ctx context.Context, q InsertUser) (*Result, error) {
	for _, u := range e.users {
		if u.Username == q.Username {
			return nil, fmt.Errorf("%w: users.username", ErrUniqueViolation)
		}
	}

	u := domain.User{
		ID:         e.nextUserID,
		Username:   q.Username,
		Password:   q.Password,
		ProfileURI: q.ProfileURI,
		CreatedAt:  q.CreatedAt,
	}
	users := append(slices.Clip(e.users), u)
	if err := e.persist(ctx, UsersKey, users, e.messages); err != nil {
		return nil, err
	}
	e.users = users
	e.nextUserID++
	return &Result{Rows: Rows{}, InsertID: u.ID, RowsAffected: 1}, nil
}

func (e *FallbackEngine) authenticate(q Authenticate) *Result {
	rows := Rows{}
	for _, u := range e.users {
		if u.Username == q.Username && u.Password == q.Password {
			rows = append(rows, contactRow(u))
		}
	}
	return &Result{Rows: rows}
}

func (e *FallbackEngine) listContacts(q ListContacts) *Result {
	type keyed struct {
		user domain.User
		key  string
	}
	fold := cases.Fold()
	others := make([]keyed, 0, len(e.users))
	for _, u := range e.users {
		if u.ID != q.ExcludeID {
			others = append(others, keyed{user: u, key: fold.String(u.Username)})
		}
	}
	// Stable: equal keys keep insertion (= id) order.
	sort.SliceStable(others, func(i, j int) bool { return others[i].key < others[j].key })

	rows := make(Rows, 0, len(others))
	for _, o := range others {
		rows = append(rows, contactRow(o.user))
	}
	return &Result{Rows: rows}
}

func (e *FallbackEngine) insertMessage(ctx context.Context, q InsertMessage) (*Result, error) {
	m := domain.Message{
		ID:        e.nextMessageID,
		FromID:    q.FromID,
		ToID:      q.ToID,
		Content:   q.Content,
		CreatedAt: q.CreatedAt,
	}
	messages := append(slices.Clip(e.messages), m)
	if err := e.persist(ctx, MessagesKey, e.users, messages); err != nil {
		return nil, err
	}
	e.messages = messages
	e.nextMessageID++
	return &Result{Rows: Rows{}, InsertID: m.ID, RowsAffected: 1}, nil
}

func (e *FallbackEngine) listConversation(q ListConversation) *Result {
	var conv []domain.Message
	for _, m := range e.messages {
		if m.Between(q.UserA, q.UserB) {
			conv = append(conv, m)
		}
	}
	sort.SliceStable(conv, func(i, j int) bool { return conv[i].CreatedAt < conv[j].CreatedAt })

	rows := make(Rows, 0, len(conv))
	for _, m := range conv {
		rows = append(rows, messageRow(m))
	}
	return &Result{Rows: rows}
}

func (e *FallbackEngine) deleteMessage(ctx context.Context, q DeleteMessage) (*Result, error) {
	idx := slices.IndexFunc(e.messages, func(m domain.Message) bool { return m.ID == q.ID })
	if idx < 0 {
		return &Result{Rows: Rows{}}, nil
	}

	messages := slices.Delete(slices.Clone(e.messages), idx, idx+1)
	if err := e.persist(ctx, MessagesKey, e.users, messages); err != nil {
		return nil, err
	}
	e.messages = messages
	return &Result{Rows: Rows{}, RowsAffected: 1}, nil
}

func (e *FallbackEngine) updateMessage(ctx context.Context, q UpdateMessageContent) (*Result, error) {
	idx := slices.IndexFunc(e.messages, func(m domain.Message) bool { return m.ID == q.ID })
	if idx < 0 {
		return &Result{Rows: Rows{}}, nil
	}

	messages := slices.Clone(e.messages)
	messages[idx].Content = q.Content
	if err := e.persist(ctx, MessagesKey, e.users, messages); err != nil {
		return nil, err
	}
	e.messages = messages
	return &Result{Rows: Rows{}, RowsAffected: 1}, nil
}

// persist writes the state that follows a mutation of the collection stored
// under changed. Lenient mode writes both collections, so a later success
// repairs an earlier failed write. Strict mode writes only the changed
// collection: disk already matches memory for the other one, and a single
// Put either stores the whole mutation or none of it.
func (e *FallbackEngine) persist(ctx context.Context, changed string, users []domain.User, messages []domain.Message) error {
	var err error
	switch {
	case e.strict && changed == UsersKey:
		err = writeCollection(ctx, e.blobs, UsersKey, users)
	case e.strict:
		err = writeCollection(ctx, e.blobs, MessagesKey, messages)
	default:
		err = writeCollection(ctx, e.blobs, UsersKey, users)
		if err == nil {
			err = writeCollection(ctx, e.blobs, MessagesKey, messages)
		}
	}
	if err == nil {
		return nil
	}

	persistFailures.Inc()
	if e.strict {
		e.log.Error().Err(err).Msg("persist failed; operation rejected")
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	e.log.Warn().Err(err).Msg("persist failed; in-memory state kept, data may be lost on restart")
	return nil
}

func writeCollection[T any](ctx context.Context, s blob.Store, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(ctx, key, data)
}

// Snapshot returns copies of both collections. It waits for the initial
// load.
func (e *FallbackEngine) Snapshot(ctx context.Context) ([]domain.User, []domain.Message, error) {
	if err := e.wait(ctx); err != nil {
		return nil, nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.users), slices.Clone(e.messages), nil
}

// Close implements Backend. It waits for a pending load before closing the
// blob store.
func (e *FallbackEngine) Close() error {
	e.Start(context.Background())
	<-e.loaded
	return e.blobs.Close()
}
