package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/render"
	"github.com/sheetchat/sheetchat/internal/table"
)

func sessionTable() *table.Table {
	return &table.Table{
		Columns:  []table.Column{{Name: "A", Key: "a", Type: table.TypeNumeric}},
		Profiles: make([]table.ColumnProfile, 1),
		RowCount: 1,
	}
}

func TestCreateAndGet(t *testing.T) {
	m := NewManager(0, nil)
	defer m.Close()

	s := m.Create(sessionTable(), "ds_abc")
	require.NotEmpty(t, s.ID)
	assert.Equal(t, "ds_abc", s.DatasetID)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestGetUnknownSession(t *testing.T) {
	m := NewManager(0, nil)
	defer m.Close()

	_, err := m.Get("nope")
	assert.Error(t, err)
}

func TestDestroyEvicts(t *testing.T) {
	var evicted []string

	m := NewManager(0, func(s *Session) {
		evicted = append(evicted, s.DatasetID)
	})
	defer m.Close()

	s := m.Create(sessionTable(), "ds_abc")
	m.Destroy(s.ID)

	assert.Equal(t, []string{"ds_abc"}, evicted)
	assert.Equal(t, 0, m.Len())

	_, err := m.Get(s.ID)
	assert.Error(t, err)
}

func TestDestroyUnknownIsNoop(t *testing.T) {
	called := false

	m := NewManager(0, func(*Session) { called = true })
	defer m.Close()

	m.Destroy("nope")
	assert.False(t, called)
}

func TestTranscript(t *testing.T) {
	m := NewManager(0, nil)
	defer m.Close()

	s := m.Create(sessionTable(), "ds_abc")

	s.AppendUser("average of A?")
	s.AppendResponse(&render.Response{Kind: plan.KindStats})

	entries := s.Transcript()
	require.Len(t, entries, 2)
	assert.Equal(t, RoleUser, entries[0].Role)
	assert.Equal(t, "average of A?", entries[0].Text)
	assert.Equal(t, RoleAssistant, entries[1].Role)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestTranscriptIsCopy(t *testing.T) {
	m := NewManager(0, nil)
	defer m.Close()

	s := m.Create(sessionTable(), "ds_abc")
	s.AppendUser("hi")

	entries := s.Transcript()
	entries[0].Text = "mutated"

	assert.Equal(t, "hi", s.Transcript()[0].Text)
}

func TestExpire(t *testing.T) {
	var evicted int

	m := NewManager(time.Hour, func(*Session) { evicted++ })
	defer m.Close()

	s := m.Create(sessionTable(), "ds_old")

	s.mu.Lock()
	s.lastActive = time.Now().Add(-2 * time.Hour)
	s.mu.Unlock()

	fresh := m.Create(sessionTable(), "ds_new")

	m.expire()

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, m.Len())

	_, err := m.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestCloseDestroysAll(t *testing.T) {
	var evicted int

	m := NewManager(0, func(*Session) { evicted++ })

	m.Create(sessionTable(), "ds_1")
	m.Create(sessionTable(), "ds_2")

	m.Close()

	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, m.Len())
}
