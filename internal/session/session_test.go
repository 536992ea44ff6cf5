package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/insightgenie/internal/chat"
	"github.com/KaramelBytes/insightgenie/internal/dataset"
)

func table(t *testing.T, text string) *dataset.Table {
	t.Helper()
	tb, err := dataset.Load(strings.NewReader(text), "sales.csv")
	require.NoError(t, err)
	return tb
}

const sales = "region,revenue\nNorth,10\nSouth,20\nNorth,30\n"

func TestLoadComputesProfileAndClearsHistory(t *testing.T) {
	s := New("x", 0)
	assert.False(t, s.Loaded())
	_, err := s.Insights()
	assert.ErrorIs(t, err, ErrNoDataset)

	s.History().Append(chat.RoleUser, "old question")
	require.NoError(t, s.Load(table(t, sales)))
	assert.True(t, s.Loaded())
	assert.Equal(t, "sales.csv", s.Name())
	assert.Equal(t, 3, s.Profile().Rows)
	assert.Zero(t, s.History().Len())
}

func TestReplaceInvalidatesCaches(t *testing.T) {
	s := New("x", 0)
	require.ErrorIs(t, s.Replace(table(t, sales)), ErrNoDataset)
	require.NoError(t, s.Load(table(t, sales)))
	s.History().Append(chat.RoleUser, "keep me")

	v1, err := s.Visualizations()
	require.NoError(t, err)
	require.NotEmpty(t, v1)

	require.NoError(t, s.Replace(table(t, "region,revenue\nNorth,1\n")))
	v2, err := s.Visualizations()
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
	assert.Equal(t, 1, s.Profile().Rows)
	assert.Equal(t, 1, s.History().Len())
}

func TestFailedLoadKeepsState(t *testing.T) {
	s := New("x", 0)
	require.NoError(t, s.Load(table(t, sales)))
	err := s.Load(&dataset.Table{Name: "empty"})
	require.Error(t, err)
	assert.Equal(t, "sales.csv", s.Name())
}

func TestManagerDoAndSweep(t *testing.T) {
	m := NewManager(time.Minute, 0)
	now := time.Now()
	m.now = func() time.Time { return now }

	id := m.Create()
	require.NoError(t, m.Do(id, func(s *Session) error { return s.Load(table(t, sales)) }))
	assert.ErrorIs(t, m.Do("missing", func(*Session) error { return nil }), ErrNotFound)

	boom := errors.New("boom")
	assert.ErrorIs(t, m.Do(id, func(*Session) error { return boom }), boom)

	now = now.Add(30 * time.Second)
	assert.Zero(t, m.Sweep())
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, m.Sweep())
	assert.Zero(t, m.Len())
}

func TestManagerSerializesSession(t *testing.T) {
	m := NewManager(0, 0)
	id := m.Create()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Do(id, func(s *Session) error {
				s.History().Append(chat.RoleUser, "q")
				return nil
			})
		}()
	}
	wg.Wait()
	_ = m.Do(id, func(s *Session) error {
		assert.Equal(t, 50, s.History().Len())
		return nil
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	m := NewManager(time.Millisecond, 0)
	m.Create()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestSaveRestore(t *testing.T) {
	dir := t.TempDir()
	s := New("abc", 0)
	require.NoError(t, s.Load(table(t, sales)))
	s.History().Append(chat.RoleUser, "hi")
	s.History().Append(chat.RoleAssistant, "hello")
	require.NoError(t, s.Save(dir))

	got, err := Restore(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, s.Table().Rows, got.Table().Rows)
	assert.Equal(t, 3, got.Profile().Rows)
	assert.Equal(t, "USER: hi ASSISTANT: hello", chat.Transcript(got.History().Messages()))

	_, err = Restore(t.TempDir(), 0)
	assert.Error(t, err)
}
