package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asksql/asksql/internal/agent"
	"github.com/asksql/asksql/internal/llm"
)

type echoLLM struct{}

func (echoLLM) Call(_ context.Context, _ string, msgs []llm.Message, _ []llm.Tool) (llm.Response, error) {
	return llm.Response{Text: "echo: " + msgs[len(msgs)-1].Text}, nil
}

type noTools struct{}

func (noTools) Definitions() []llm.Tool { return nil }
func (noTools) Call(context.Context, string, map[string]any) (string, error) {
	return "", errors.New("no tools")
}

func factory() (*agent.Session, error) {
	return agent.NewSession(&agent.Config{LLM: echoLLM{}, Tools: noTools{}})
}

func TestCreateGetDelete(t *testing.T) {
	m := NewManager(time.Minute, 0, factory, nil)

	id, s, err := m.Create()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(id)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Delete(id))
	_, err = m.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(id), ErrNotFound)
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(time.Minute, 0, factory, nil)
	idA, a, err := m.Create()
	require.NoError(t, err)
	idB, b, err := m.Create()
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)

	_, err = a.Send(context.Background(), "hello from a")
	require.NoError(t, err)

	assert.Len(t, a.History(), 2)
	assert.Empty(t, b.History())
}

func TestGetOrCreate(t *testing.T) {
	m := NewManager(time.Minute, 0, factory, nil)

	id, s, err := m.GetOrCreate("")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, s2, err := m.GetOrCreate(id)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Same(t, s, s2)

	_, _, err = m.GetOrCreate("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiry(t *testing.T) {
	m := NewManager(20*time.Millisecond, 0, factory, nil)
	id, _, err := m.Create()
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = m.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCapacity(t *testing.T) {
	m := NewManager(time.Minute, 2, factory, nil)
	first, _, err := m.Create()
	require.NoError(t, err)
	_, _, err = m.Create()
	require.NoError(t, err)
	_, _, err = m.Create()
	require.NoError(t, err)

	assert.Equal(t, 2, m.Len())
	_, err = m.Get(first)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFactoryError(t *testing.T) {
	boom := errors.New("boom")
	m := NewManager(time.Minute, 0, func() (*agent.Session, error) { return nil, boom }, nil)
	_, _, err := m.Create()
	assert.ErrorIs(t, err, boom)
}
