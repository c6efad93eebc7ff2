package repo

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-local-messenger/internal/blob"
	"github.com/tbourn/go-local-messenger/internal/domain"
)

// memBlobs is an in-memory blob.Store whose writes can be made to fail and
// whose reads can be held back.
type memBlobs struct {
	mu      sync.Mutex
	data    map[string][]byte
	failPut bool
	failKey string
	puts    int
	gate    chan struct{}
}

func newMemBlobs() *memBlobs { return &memBlobs{data: map[string][]byte{}} }

func (m *memBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBlobs) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut || key == m.failKey {
		return errors.New("disk full")
	}
	m.puts++
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBlobs) Close() error { return nil }

func (m *memBlobs) setFail(v bool) {
	m.mu.Lock()
	m.failPut = v
	m.mu.Unlock()
}

// failOnly makes writes to key fail; "" disarms it.
func (m *memBlobs) failOnly(key string) {
	m.mu.Lock()
	m.failKey = key
	m.mu.Unlock()
}

func fexec(t *testing.T, e *FallbackEngine, q Query) *Result {
	t.Helper()
	res, err := e.Execute(context.Background(), q)
	require.NoError(t, err, q.Name())
	return res
}

func TestFallback_PersistsAndReloads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")

	bs, err := blob.NewFileStore(dir)
	require.NoError(t, err)
	e := NewFallbackEngine(bs, FallbackOptions{})
	uri := "file:///avatars/alice.png"
	fexec(t, e, InsertUser{Username: "alice", Password: "pw1", ProfileURI: &uri, CreatedAt: 1})
	fexec(t, e, InsertUser{Username: "bob", Password: "pw2"})
	fexec(t, e, InsertMessage{FromID: 1, ToID: 2, Content: "hi", CreatedAt: 10})
	fexec(t, e, InsertMessage{FromID: 2, ToID: 1, Content: "bye", CreatedAt: 11})
	fexec(t, e, DeleteMessage{ID: 2})
	usersBefore, messagesBefore, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	bs, err = blob.NewFileStore(dir)
	require.NoError(t, err)
	e = NewFallbackEngine(bs, FallbackOptions{})
	t.Cleanup(func() { _ = e.Close() })

	users, messages, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, usersBefore, users)
	assert.Equal(t, messagesBefore, messages)
	require.NotNil(t, users[0].ProfileURI)
	assert.Equal(t, uri, *users[0].ProfileURI)
	assert.Nil(t, users[1].ProfileURI)
	assert.NotZero(t, users[1].CreatedAt, "the defaulted timestamp is stored")

	// Counters resume past the highest persisted id.
	u := fexec(t, e, InsertUser{Username: "carol", Password: "pw3"})
	assert.Equal(t, int64(3), u.InsertID)
	m := fexec(t, e, InsertMessage{FromID: 3, ToID: 1, Content: "x"})
	assert.Equal(t, int64(2), m.InsertID)

	// The original case-sensitive uniqueness still holds after reload.
	_, err = e.Execute(context.Background(), InsertUser{Username: "alice", Password: "x"})
	assert.ErrorIs(t, err, ErrUniqueViolation)
}

func TestFallback_BlobFormat(t *testing.T) {
	bs := newMemBlobs()
	e := NewFallbackEngine(bs, FallbackOptions{})
	fexec(t, e, InsertUser{Username: "alice", Password: "pw", CreatedAt: 5})

	var users []domain.User
	require.NoError(t, json.Unmarshal(bs.data[UsersKey], &users))
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, int64(5), users[0].CreatedAt)

	// Both collections are written on every mutation, even an empty one.
	assert.JSONEq(t, `[]`, string(bs.data[MessagesKey]))
}

func TestFallback_CorruptBlobStartsEmpty(t *testing.T) {
	bs := newMemBlobs()
	bs.data[UsersKey] = []byte("{not json")
	bs.data[MessagesKey] = []byte(`[{"id":7,"from_id":1,"to_id":2,"content":"x","created_at":1}]`)

	e := NewFallbackEngine(bs, FallbackOptions{})
	users, messages, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	require.Len(t, messages, 1, "the readable collection is kept")
	assert.Equal(t, int64(7), messages[0].ID)

	res := fexec(t, e, InsertUser{Username: "alice", Password: "pw"})
	assert.Equal(t, int64(1), res.InsertID)
	res = fexec(t, e, InsertMessage{FromID: 1, ToID: 2, Content: "y"})
	assert.Equal(t, int64(8), res.InsertID)

	var stored []domain.Message
	require.NoError(t, json.Unmarshal(bs.data[MessagesKey], &stored))
	assert.Len(t, stored, 2, "the next write keeps the loaded messages")
}

func TestFallback_LenientPersistFailureKeepsMutation(t *testing.T) {
	bs := newMemBlobs()
	e := NewFallbackEngine(bs, FallbackOptions{})
	fexec(t, e, InsertUser{Username: "alice", Password: "pw"})

	before := testutil.ToFloat64(persistFailures)
	bs.setFail(true)
	res := fexec(t, e, InsertMessage{FromID: 1, ToID: 1, Content: "kept"})
	assert.Equal(t, int64(1), res.InsertID)
	assert.Equal(t, before+1, testutil.ToFloat64(persistFailures))

	conv := fexec(t, e, ListConversation{UserA: 1, UserB: 1}).Rows.Messages()
	require.Len(t, conv, 1)

	// A later successful write repairs the stored state.
	bs.setFail(false)
	fexec(t, e, InsertMessage{FromID: 1, ToID: 1, Content: "again"})
	var stored []domain.Message
	require.NoError(t, json.Unmarshal(bs.data[MessagesKey], &stored))
	assert.Len(t, stored, 2)
}

func TestFallback_StrictPersistFailureRejects(t *testing.T) {
	bs := newMemBlobs()
	e := NewFallbackEngine(bs, FallbackOptions{StrictPersist: true})
	fexec(t, e, InsertUser{Username: "alice", Password: "pw"})
	fexec(t, e, InsertMessage{FromID: 1, ToID: 1, Content: "a"})

	bs.setFail(true)
	_, err := e.Execute(context.Background(), InsertUser{Username: "bob", Password: "pw"})
	require.ErrorIs(t, err, ErrPersistence)
	_, err = e.Execute(context.Background(), UpdateMessageContent{ID: 1, Content: "b"})
	require.ErrorIs(t, err, ErrPersistence)
	_, err = e.Execute(context.Background(), DeleteMessage{ID: 1})
	require.ErrorIs(t, err, ErrPersistence)

	// Memory is untouched and the id was not consumed.
	bs.setFail(false)
	users, messages, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	require.Len(t, messages, 1)
	assert.Equal(t, "a", messages[0].Content)

	res := fexec(t, e, InsertUser{Username: "bob", Password: "pw"})
	assert.Equal(t, int64(2), res.InsertID)
}

func TestFallback_StrictWritesOnlyTheChangedCollection(t *testing.T) {
	bs := newMemBlobs()
	e := NewFallbackEngine(bs, FallbackOptions{StrictPersist: true})
	fexec(t, e, InsertUser{Username: "alice", Password: "pw", CreatedAt: 1})
	fexec(t, e, InsertMessage{FromID: 1, ToID: 1, Content: "a", CreatedAt: 2})

	// Messages cannot be written: message shapes are rejected and leave the
	// users blob alone, while registering still succeeds.
	bs.failOnly(MessagesKey)
	usersBlob := string(bs.data[UsersKey])
	_, err := e.Execute(context.Background(), InsertMessage{FromID: 1, ToID: 1, Content: "lost"})
	require.ErrorIs(t, err, ErrPersistence)
	_, err = e.Execute(context.Background(), UpdateMessageContent{ID: 1, Content: "lost"})
	require.ErrorIs(t, err, ErrPersistence)
	_, err = e.Execute(context.Background(), DeleteMessage{ID: 1})
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, usersBlob, string(bs.data[UsersKey]))

	bob := fexec(t, e, InsertUser{Username: "bob", Password: "pw", CreatedAt: 3})
	assert.Equal(t, int64(2), bob.InsertID)

	// Users cannot be written: a rejected registration never reaches disk
	// and does not consume an id.
	bs.failOnly(UsersKey)
	_, err = e.Execute(context.Background(), InsertUser{Username: "carol", Password: "pw"})
	require.ErrorIs(t, err, ErrPersistence)
	msg := fexec(t, e, InsertMessage{FromID: 2, ToID: 1, Content: "b", CreatedAt: 4})
	assert.Equal(t, int64(2), msg.InsertID)

	bs.failOnly("")
	carol := fexec(t, e, InsertUser{Username: "carol", Password: "pw", CreatedAt: 5})
	assert.Equal(t, int64(3), carol.InsertID)

	// Disk and memory agree after every accepted and rejected call.
	liveUsers, liveMessages, err := e.Snapshot(context.Background())
	require.NoError(t, err)
	reloaded := NewFallbackEngine(bs, FallbackOptions{StrictPersist: true})
	diskUsers, diskMessages, err := reloaded.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, liveUsers, diskUsers)
	assert.Equal(t, liveMessages, diskMessages)
	require.Len(t, diskMessages, 2)
	assert.Equal(t, "a", diskMessages[0].Content)
}

func TestFallback_NoPersistWhenNothingChanges(t *testing.T) {
	bs := newMemBlobs()
	e := NewFallbackEngine(bs, FallbackOptions{})
	fexec(t, e, InsertUser{Username: "alice", Password: "pw"})
	puts := bs.puts

	fexec(t, e, DeleteMessage{ID: 9})
	fexec(t, e, UpdateMessageContent{ID: 9, Content: "x"})
	fexec(t, e, ListContacts{ExcludeID: 1})
	_, err := e.Execute(context.Background(), InsertUser{Username: "alice", Password: "pw"})
	require.ErrorIs(t, err, ErrUniqueViolation)

	assert.Equal(t, puts, bs.puts)
}

func TestFallback_ExecuteWaitsForLoad(t *testing.T) {
	bs := newMemBlobs()
	bs.data[UsersKey] = []byte(`[{"id":4,"username":"alice","password":"pw","profile_uri":null,"created_at":1}]`)
	bs.gate = make(chan struct{})

	e := NewFallbackEngine(bs, FallbackOptions{})
	e.Start(context.Background())

	done := make(chan *Result, 1)
	go func() {
		res, _ := e.Execute(context.Background(), Authenticate{Username: "alice", Password: "pw"})
		done <- res
	}()

	select {
	case <-done:
		t.Fatal("Execute returned before the load finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(bs.gate)
	select {
	case res := <-done:
		require.NotNil(t, res)
		assert.Equal(t, 1, res.Rows.Len())
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after the load finished")
	}
}

func TestFallback_ExecuteHonorsContextWhileLoading(t *testing.T) {
	bs := newMemBlobs()
	bs.gate = make(chan struct{})
	t.Cleanup(func() { close(bs.gate) })

	e := NewFallbackEngine(bs, FallbackOptions{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Execute(ctx, ListContacts{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFallback_ConcurrentInsertsAreSerialized(t *testing.T) {
	e := NewFallbackEngine(newMemBlobs(), FallbackOptions{})

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Execute(context.Background(), InsertUser{Username: "same", Password: "pw"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrUniqueViolation):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func TestFallback_UsesClockForDefaultTimestamps(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	e := NewFallbackEngine(newMemBlobs(), FallbackOptions{Now: func() time.Time { return fixed }})

	fexec(t, e, InsertMessage{FromID: 1, ToID: 2, Content: "x"})
	conv := fexec(t, e, ListConversation{UserA: 1, UserB: 2}).Rows.Messages()
	require.Len(t, conv, 1)
	assert.Equal(t, fixed.UnixMilli(), conv[0].CreatedAt)
}
