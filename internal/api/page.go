package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// PageQuery holds the query parameters of one paginated request.
type PageQuery struct {
	Limit int
	// Cursor is the continuation token from the previous page; empty on the first call.
	Cursor string
	// MinTSParam names the lower-bound filter (e.g. "min_created_ts"); MinTS is
	// only sent when both are set.
	MinTSParam string
	MinTS      int64
	Extra      map[string]string
}

func (q PageQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	if q.MinTSParam != "" && q.MinTS > 0 {
		v.Set(q.MinTSParam, strconv.FormatInt(q.MinTS, 10))
	}
	for k, val := range q.Extra {
		v.Set(k, val)
	}
	return v
}

// RawPage is one decoded page. Items keep their JSON numbers as json.Number.
type RawPage struct {
	Items  []map[string]any
	Cursor string
}

// GetPage fetches one page from path and decodes the array named itemsField
// along with the continuation cursor. A missing or null cursor yields "".
func (c *Client) GetPage(ctx context.Context, path, itemsField string, q PageQuery) (*RawPage, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, q.values())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	page, err := decodePage(body, itemsField)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return page, nil
}

func decodePage(body []byte, itemsField string) (*RawPage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	page := &RawPage{}

	if raw, ok := envelope["cursor"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &page.Cursor); err != nil {
			return nil, fmt.Errorf("unmarshal cursor: %w", err)
		}
	}

	raw, ok := envelope[itemsField]
	if !ok || string(raw) == "null" {
		return page, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&page.Items); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", itemsField, err)
	}
	return page, nil
}
