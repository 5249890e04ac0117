package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/domain"
)

func rpcServer(t *testing.T, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTransaction", req.Method)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := rpcServer(t, map[string]interface{}{
		"slot":      int64(123456),
		"blockTime": int64(1700000000),
		"meta": map[string]interface{}{
			"err":         nil,
			"logMessages": []string{"Program log: Hello", "Program log: World"},
			"loadedAddresses": map[string]interface{}{
				"writable": []string{"lut_w"},
				"readonly": []string{"lut_r"},
			},
		},
		"transaction": map[string]interface{}{
			"message": map[string]interface{}{
				"accountKeys": []string{"addr1", "addr2", "program"},
				"instructions": []map[string]interface{}{
					{"programIdIndex": 2, "accounts": []int{0, 1, 3, 4}, "data": "3Bxs"},
				},
			},
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "testsig123")
	require.NoError(t, err)
	require.NotNil(t, tx)

	assert.Equal(t, int64(123456), tx.Slot)
	assert.Equal(t, int64(1700000000), tx.BlockTime)
	assert.Equal(t, "testsig123", tx.Signature)
	assert.False(t, tx.Failed())
	require.NotNil(t, tx.Meta)
	assert.Len(t, tx.Meta.LogMessages, 2)

	require.NotNil(t, tx.Message)
	keys := tx.Message.AccountKeys
	assert.Equal(t, []string{"addr1", "addr2", "program", "lut_w", "lut_r"}, keys)

	require.Len(t, tx.Message.Instructions, 1)
	ix := tx.Message.Instructions[0]
	assert.Equal(t, "program", ix.ProgramID(keys))
	assert.Equal(t, "addr1", ix.Account(keys, 0))
	assert.Equal(t, "lut_w", ix.Account(keys, 2))
	assert.Equal(t, "lut_r", ix.Account(keys, 3))
	assert.Equal(t, "", ix.Account(keys, 4))
	assert.Equal(t, "3Bxs", ix.Data)
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := rpcServer(t, nil)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestHTTPClient_GetTransaction_Failed(t *testing.T) {
	server := rpcServer(t, map[string]interface{}{
		"slot": int64(1),
		"meta": map[string]interface{}{
			"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
		},
	})
	defer server.Close()

	tx, err := NewHTTPClient(server.URL).GetTransaction(context.Background(), "sig")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.True(t, tx.Failed())
	assert.Nil(t, tx.Message)
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"slot": int64(999)},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	tx, err := client.GetTransaction(context.Background(), "sig")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, int64(999), tx.Slot)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
	)

	_, err := client.GetTransaction(context.Background(), "sig")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientProvider)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid params"},
		})
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).GetTransaction(context.Background(), "bad")
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, int32(1), attempts.Load(), "RPC errors are not retried")
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPClient(server.URL).GetTransaction(ctx, "sig")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInstruction_OutOfRange(t *testing.T) {
	ix := Instruction{ProgramIDIndex: 5, Accounts: []int{-1, 9}}
	keys := []string{"a", "b"}

	assert.Equal(t, "", ix.ProgramID(keys))
	assert.Equal(t, "", ix.Account(keys, 0))
	assert.Equal(t, "", ix.Account(keys, 1))
	assert.Equal(t, "", ix.Account(keys, 7))
}
