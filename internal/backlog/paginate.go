package backlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// PageSize is the number of items requested per page.
const PageSize = 100

// FetchAll retrieves every item of an offset-paged collection. Pages of
// PageSize items are requested with count/offset until a page comes back
// short. Endpoints that ignore paging are detected by a page larger than
// requested, or by a page identical to the previous one, and end the walk.
// Transport errors are returned as is.
func FetchAll(ctx context.Context, d Doer, path string, params url.Values) ([]json.RawMessage, error) {
	var (
		all  []json.RawMessage
		prev []json.RawMessage
	)
	for offset := 0; ; offset += PageSize {
		q := cloneValues(params)
		q.Set("count", strconv.Itoa(PageSize))
		q.Set("offset", strconv.Itoa(offset))

		page, err := fetchPage(ctx, d, path, q)
		if err != nil {
			return nil, err
		}
		if samePage(prev, page) {
			break
		}
		all = append(all, page...)

		if len(page) != PageSize {
			break
		}
		prev = page
	}
	return all, nil
}

// FetchAllByCursor retrieves every item of an id-ordered collection that
// pages with minId instead of offset, such as issue comments. Items are
// requested in ascending id order.
func FetchAllByCursor(ctx context.Context, d Doer, path string, params url.Values) ([]json.RawMessage, error) {
	var all []json.RawMessage
	minID := 0
	for {
		q := cloneValues(params)
		q.Set("count", strconv.Itoa(PageSize))
		q.Set("order", "asc")
		if minID > 0 {
			q.Set("minId", strconv.Itoa(minID))
		}

		page, err := fetchPage(ctx, d, path, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		if len(page) != PageSize {
			break
		}

		lastID, err := itemID(page[len(page)-1])
		if err != nil {
			return nil, fmt.Errorf("paging %s: %w", path, err)
		}
		if lastID < minID {
			break
		}
		minID = lastID + 1
	}
	return all, nil
}

func fetchPage(ctx context.Context, d Doer, path string, q url.Values) ([]json.RawMessage, error) {
	p, err := d.Do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return nil, err
	}
	if !p.IsJSON() {
		return nil, fmt.Errorf("GET %s: expected a JSON list, got %q", path, p.ContentType)
	}
	var page []json.RawMessage
	if err := json.Unmarshal(p.JSON, &page); err != nil {
		return nil, fmt.Errorf("decoding page of %s: %w", path, err)
	}
	return page, nil
}

func itemID(raw json.RawMessage) (int, error) {
	var v struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("reading item id: %w", err)
	}
	return v.ID, nil
}

func samePage(a, b []json.RawMessage) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+3)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// decodeList decodes raw items into T, keeping their order.
func decodeList[T any](path string, raws []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decoding item %d of %s: %w", i, path, err)
		}
		out = append(out, v)
	}
	return out, nil
}
