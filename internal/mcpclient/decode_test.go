package mcpclient_test

import (
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/relay-agent/internal/mcpclient"
)

const payload = `{"jsonrpc":"2.0","id":"req_1","result":{"tools":[{"name":"search"}]}}`

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
		wantErr     bool
	}{
		{name: "json", contentType: "application/json", body: payload, want: payload},
		{name: "json with charset and whitespace", contentType: "application/json; charset=utf-8", body: "\n " + payload + "\n", want: payload},
		{name: "sse", contentType: "text/event-stream", body: "event: message\ndata: " + payload + "\n\n", want: payload},
		{name: "sse crlf", contentType: "text/event-stream", body: "event: message\r\ndata: " + payload + "\r\n\r\n", want: payload},
		{name: "sse without space after colon", contentType: "text/event-stream", body: "data:" + payload + "\n", want: payload},
		{name: "sse first decodable data wins", contentType: "text/event-stream", body: "data: {broken\ndata: " + payload + "\ndata: {\"other\":1}\n", want: payload},
		{name: "event prefix beats json content type", contentType: "application/json", body: "event: message\ndata: " + payload + "\n", want: payload},
		{name: "ambiguous json", contentType: "text/plain", body: payload, want: payload},
		{name: "ambiguous sse", contentType: "", body: ": keepalive\ndata: " + payload + "\n", want: payload},
		{name: "invalid json body", contentType: "application/json", body: "{oops", wantErr: true},
		{name: "sse without data", contentType: "text/event-stream", body: "event: message\n\n", wantErr: true},
		{name: "empty ambiguous", contentType: "", body: "", wantErr: true},
		{name: "html error page", contentType: "text/html", body: "<html>bad gateway</html>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mcpclient.DecodePayload(tt.contentType, []byte(tt.body))
			if tt.wantErr {
				var pe *mcpclient.ProtocolError
				require.True(t, errors.As(err, &pe), "want ProtocolError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDecodePayload_JSONAndEventStreamAgree(t *testing.T) {
	fromJSON, err := mcpclient.DecodePayload("application/json", []byte(payload))
	require.NoError(t, err)
	fromSSE, err := mcpclient.DecodePayload("text/event-stream", []byte("event: message\ndata: "+payload+"\n"))
	require.NoError(t, err)

	var a, b any
	require.NoError(t, json.Unmarshal(fromJSON, &a))
	require.NoError(t, json.Unmarshal(fromSSE, &b))
	assert.Equal(t, a, b)
	assert.Equal(t, string(fromJSON), string(fromSSE))
}

func TestDecodeStream_StopsAfterFirstPayload(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	go func() {
		// the stream stays open after the message
		_, _ = pw.Write([]byte("event: message\ndata: " + payload + "\n\n"))
	}()

	got, err := mcpclient.DecodeStream("text/event-stream", pr)
	require.NoError(t, err)
	assert.JSONEq(t, payload, string(got))
}
