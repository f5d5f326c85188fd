package mcpclient

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	contentTypeJSON = "application/json"
	contentTypeSSE  = "text/event-stream"

	maxBodyBytes = 8 << 20
)

// DecodePayload extracts the JSON-RPC message from a complete response body.
func DecodePayload(contentType string, body []byte) (json.RawMessage, error) {
	return DecodeStream(contentType, bytes.NewReader(body))
}

// DecodeStream extracts the JSON-RPC message from r.
//
// Rules:
//   - text/event-stream, or a body starting with "event:": the first data
//     line holding valid JSON; the rest of the stream is not read.
//   - application/json: the whole body.
//   - anything else: the whole body if it is JSON, otherwise event-stream
//     scanning.
//
// A body with no decodable payload yields a *ProtocolError. Read failures
// are returned unwrapped.
func DecodeStream(contentType string, r io.Reader) (json.RawMessage, error) {
	br := bufio.NewReader(r)
	mt := mediaType(contentType)
	if mt == contentTypeSSE || startsWithEvent(br) {
		return scanEvents(br)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if gjson.ValidBytes(trimmed) {
		return json.RawMessage(trimmed), nil
	}
	if mt == contentTypeJSON {
		return nil, &ProtocolError{Reason: "invalid JSON body", Body: truncate(body, 256)}
	}
	return scanEvents(bytes.NewReader(body))
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

func startsWithEvent(br *bufio.Reader) bool {
	const prefix = "event:"
	b, _ := br.Peek(len(prefix))
	return string(b) == prefix
}

func scanEvents(r io.Reader) (json.RawMessage, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxBodyBytes)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data:")
		if !ok {
			continue
		}
		data = strings.TrimPrefix(data, " ")
		if gjson.Valid(data) {
			return json.RawMessage(data), nil
		}
		log.Debugf("mcpclient: skipping undecodable data line (%d bytes)", len(data))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, &ProtocolError{Reason: "no decodable data line in event stream"}
}
