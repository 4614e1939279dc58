package process

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/imyashkale/mcpbridge/internal/broadcast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectMessages(t *testing.T, ch <-chan broadcast.Event, want int) []string {
	t.Helper()
	var out []string
	timeout := time.After(5 * time.Second)
	for len(out) < want {
		select {
		case event, ok := <-ch:
			if !ok {
				t.Fatalf("hub closed after %d of %d messages", len(out), want)
			}
			if event.Type == broadcast.TypeMessage {
				out = append(out, string(event.Data))
			}
		case <-timeout:
			t.Fatalf("timed out after %d of %d messages", len(out), want)
		}
	}
	return out
}

func TestProcessBufferSingleObjectSplitAcrossReads(t *testing.T) {
	m := New("test", "true", nil, nil)
	ch, cancel := m.Hub().Subscribe()
	defer cancel()

	m.processBuffer([]byte(`{"jsonrpc":"2.0",`))
	assert.Equal(t, 0, len(ch), "no message before the newline arrives")

	m.processBuffer([]byte(`"id":1,"result":"ok"}` + "\n"))

	messages := collectMessages(t, ch, 1)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"ok"}`, messages[0])
	assert.Empty(t, m.buffer)
}

func TestProcessBufferMultipleObjectsInOneRead(t *testing.T) {
	m := New("test", "true", nil, nil)
	ch, cancel := m.Hub().Subscribe()
	defer cancel()

	m.processBuffer([]byte("{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n"))

	messages := collectMessages(t, ch, 3)
	for i, msg := range messages {
		assert.JSONEq(t, fmt.Sprintf(`{"id":%d}`, i+1), msg)
	}
}

func TestProcessBufferRetainsTrailingFragment(t *testing.T) {
	m := New("test", "true", nil, nil)
	ch, cancel := m.Hub().Subscribe()
	defer cancel()

	m.processBuffer([]byte("{\"id\":1}\n{\"id\":2"))
	messages := collectMessages(t, ch, 1)
	assert.JSONEq(t, `{"id":1}`, messages[0])
	assert.Equal(t, `{"id":2`, m.buffer)

	m.processBuffer([]byte("}\n"))
	messages = collectMessages(t, ch, 1)
	assert.JSONEq(t, `{"id":2}`, messages[0])
	assert.Empty(t, m.buffer)
}

func TestProcessBufferDropsUnparseableLines(t *testing.T) {
	m := New("test", "true", nil, nil)
	ch, cancel := m.Hub().Subscribe()
	defer cancel()

	m.processBuffer([]byte("not json at all\n{\"id\":1}\n  \n"))

	messages := collectMessages(t, ch, 1)
	assert.JSONEq(t, `{"id":1}`, messages[0])
	assert.Equal(t, 0, len(ch), "bad and blank lines produce no events")
}

func TestProcessBufferChunkingInvariance(t *testing.T) {
	payload := "{\"jsonrpc\":\"2.0\",\"id\":1,\"result\":\"ok\"}\n{\"jsonrpc\":\"2.0\",\"method\":\"notify\"}\n{\"jsonrpc\":\"2.0\",\"id\":2,\"error\":{\"code\":-32600}}\n"

	for _, chunkSize := range []int{1, 2, 3, 7, 16, len(payload)} {
		m := New("test", "true", nil, nil)
		ch, cancel := m.Hub().Subscribe()

		for i := 0; i < len(payload); i += chunkSize {
			end := i + chunkSize
			if end > len(payload) {
				end = len(payload)
			}
			m.processBuffer([]byte(payload[i:end]))
		}

		messages := collectMessages(t, ch, 3)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"ok"}`, messages[0], "chunk size %d", chunkSize)
		assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notify"}`, messages[1], "chunk size %d", chunkSize)
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"error":{"code":-32600}}`, messages[2], "chunk size %d", chunkSize)
		cancel()
	}
}

func TestSendFailsBeforeStart(t *testing.T) {
	m := New("test", "cat", nil, nil)

	err := m.Send(map[string]interface{}{"jsonrpc": "2.0", "id": 1})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSpawnFailureEmitsErrorEvent(t *testing.T) {
	m := New("broken", "/nonexistent/definitely-not-a-binary", nil, nil)
	ch, cancel := m.Hub().Subscribe()
	defer cancel()

	m.Start()

	select {
	case event := <-ch:
		require.Equal(t, broadcast.TypeError, event.Type)
		assert.Contains(t, event.Err, "start process")
	case <-time.After(2 * time.Second):
		t.Fatal("expected an error event")
	}
	assert.False(t, m.Connected())
}

func TestEchoRoundTrip(t *testing.T) {
	m := New("echo", "cat", nil, nil)
	ch, cancel := m.Hub().Subscribe()
	defer cancel()

	m.Start()
	require.True(t, m.Connected())

	require.NoError(t, m.Send(json.RawMessage(`{"jsonrpc":"2.0","id":1,"result":"ok"}`)))

	messages := collectMessages(t, ch, 1)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":"ok"}`, messages[0])

	m.Stop()
	assert.False(t, m.Connected())
	assert.ErrorIs(t, m.Send(json.RawMessage(`{}`)), ErrNotConnected)
}

func TestExitEventFollowsMessages(t *testing.T) {
	m := New("oneshot", "sh", []string{"-c", `echo '{"jsonrpc":"2.0","id":1,"result":"ok"}'`}, nil)
	ch, cancel := m.Hub().Subscribe()
	defer cancel()

	exited := make(chan struct{})
	m.SetExitHandler(func(name string, code int, signal string) {
		assert.Equal(t, "oneshot", name)
		assert.Equal(t, 0, code)
		close(exited)
	})

	m.Start()

	var types []broadcast.EventType
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				require.Equal(t, []broadcast.EventType{broadcast.TypeMessage, broadcast.TypeExit}, types)
				<-exited
				return
			}
			types = append(types, event.Type)
		case <-timeout:
			t.Fatalf("timed out, saw %v", types)
		}
	}
}

func TestMergeEnvOverridesAndAppends(t *testing.T) {
	t.Setenv("MCPBRIDGE_TEST_VAR", "original")

	env := mergeEnv(map[string]string{
		"MCPBRIDGE_TEST_VAR": "overridden",
		"MCPBRIDGE_NEW_VAR":  "added",
	})

	assert.Contains(t, env, "MCPBRIDGE_TEST_VAR=overridden")
	assert.NotContains(t, env, "MCPBRIDGE_TEST_VAR=original")
	assert.Contains(t, env, "MCPBRIDGE_NEW_VAR=added")
}
