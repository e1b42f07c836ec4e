package broker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
)

// Link is a related resource advertised by a response.
type Link struct {
	URL          string
	RequiresAuth bool
}

// IsZero reports whether the link is unset.
func (l Link) IsZero() bool { return l.URL == "" }

// Response is a successful, parsed brokerage response.
type Response struct {
	Body json.RawMessage

	auth   bool
	client *Client
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Links walks the body and returns every absolute URL under the API root, keyed by
// its dotted field path ("positions", "results.0.url"). Each link carries the auth
// requirement of the call that produced this response.
func (r *Response) Links() map[string]Link {
	links := map[string]Link{}
	if len(r.Body) == 0 {
		return links
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return links
	}
	r.collect("", v, links)
	return links
}

func (r *Response) collect(path string, v any, links map[string]Link) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			r.collect(joinPath(path, k), child, links)
		}
	case []any:
		for i, child := range t {
			r.collect(joinPath(path, strconv.Itoa(i)), child, links)
		}
	case string:
		if link, ok := r.client.Link(t, r.auth); ok {
			links[path] = link
		}
	}
}

// Follow requests the link found at path in this response.
func (r *Response) Follow(ctx context.Context, path, method string) (*Response, error) {
	link, ok := r.Links()[path]
	if !ok {
		return nil, errors.New("no link at " + strconv.Quote(path))
	}
	return r.client.Follow(ctx, link, method)
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func decodeAs[T any](resp *Response) (T, error) {
	var v T
	err := resp.Decode(&v)
	return v, err
}

type page[T any] struct {
	Previous string `json:"previous"`
	Next     string `json:"next"`
	Results  []T    `json:"results"`
}
