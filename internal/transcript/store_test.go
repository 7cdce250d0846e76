package transcript_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petasbytes/go-conv/conv"
	"github.com/petasbytes/go-conv/internal/transcript"
	"github.com/petasbytes/go-conv/listener"
	"github.com/petasbytes/go-conv/tools"
)

func open(t *testing.T) *transcript.Store {
	t.Helper()
	s, err := transcript.Open(context.Background(), filepath.Join(t.TempDir(), "transcript.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordsThroughBus(t *testing.T) {
	ctx := context.Background()
	s := open(t)
	bus := listener.NewBus(nil, s)

	c, err := conv.New("m", []conv.Message{conv.System("sys"), conv.User("hi")}, conv.WithID("c1"))
	require.NoError(t, err)
	c = bus.Before(ctx, c)

	reply, err := conv.Assistant("", conv.ToolCall{ID: "call_1", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)})
	require.NoError(t, err)
	c, err = c.Append(reply)
	require.NoError(t, err)
	c = bus.After(ctx, c)

	tm, err := conv.ToolMessage(tools.Result{CallID: "call_1", Content: "x"})
	require.NoError(t, err)
	c, err = c.Append(tm)
	require.NoError(t, err)
	bus.Before(ctx, c)

	rows, err := s.Rows(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, r := range rows {
		require.Equal(t, i+1, r.Seq)
		require.False(t, r.CreatedAt.IsZero())
	}
	require.Equal(t, conv.RoleSystem, rows[0].Role)
	require.Equal(t, "hi", rows[1].Content)
	require.Equal(t, "echo", rows[2].Message.ToolCalls()[0].Name)
	require.Equal(t, "call_1", rows[3].ToolCallID)

	msgs, err := s.Messages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, c.Len())
	for i, m := range c.Messages() {
		require.Equal(t, m.Role(), msgs[i].Role())
		require.Equal(t, m.Text(), msgs[i].Text())
	}
}

func TestStore_SequencesArePerConversation(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := s.Insert(ctx, id, conv.User("x"))
				if err != nil {
					t.Error(err)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"a", "b"} {
		rows, err := s.Rows(ctx, id)
		require.NoError(t, err)
		require.Len(t, rows, 5)
		require.Equal(t, 5, rows[4].Seq)
	}

	ids, err := s.Conversations(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestStore_UnknownConversationIsEmpty(t *testing.T) {
	msgs, err := open(t).Messages(context.Background(), "nope")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestStore_ReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "t.db")

	s, err := transcript.Open(ctx, path, nil)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "c", conv.User("first"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = transcript.Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	seq, err := s.Insert(ctx, "c", conv.User("second"))
	require.NoError(t, err)
	require.Equal(t, 2, seq)
}
