package checkerhub

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Event is one server-sent event from /v1/stream.
type Event struct {
	ID   string
	Type string
	Data json.RawMessage
}

// Stream connects to the event stream and calls fn for every event until ctx
// is cancelled, the server closes the stream or fn returns an error.
func (c *Client) Stream(ctx context.Context, fn func(Event) error) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/stream", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives any request timeout.
	httpClient := *c.HTTPClient
	httpClient.Timeout = 0
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	err = ReadEvents(resp.Body, fn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ReadEvents parses an event stream. Comment lines are skipped and
// multi-line data fields are joined with newlines.
func ReadEvents(r io.Reader, fn func(Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)

	var ev Event
	var data []string
	flush := func() error {
		if len(data) == 0 && ev.Type == "" {
			return nil
		}
		ev.Data = json.RawMessage(strings.Join(data, "\n"))
		if ev.Type == "" {
			ev.Type = "message"
		}
		err := fn(ev)
		ev = Event{}
		data = data[:0]
		return err
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			ev.ID = value
		case "event":
			ev.Type = value
		case "data":
			data = append(data, value)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return flush()
}
