package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Pagination carries the cursor parameters of a list request. It is embedded
// in query-binding structs, so the form tags matter.
type Pagination struct {
	PageToken string `form:"page_token" json:"page_token"`
	PageSize  int    `form:"page_size" json:"page_size"`
}

// PageInfo is returned alongside a page of results.
type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

// Cursor is the decoded form of a page token. CreatedAt is RFC3339.
type Cursor struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

func EncodeCursor(c Cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return Cursor{}, fmt.Errorf("decode page token: %w", err)
	}
	return c, nil
}

// BuildCursorPageInfo inspects a page fetched with one extra row. When the
// extra row is present there are more results and the token anchors on the
// last row that survives trimming. Returns nil when pagination was not
// requested.
func BuildCursorPageInfo[T any](items []T, pageSize int32, cursor func(T) string) *PageInfo {
	if pageSize <= 0 {
		return nil
	}
	info := &PageInfo{}
	if len(items) > int(pageSize) {
		info.HasMore = true
		info.NextPageToken = cursor(items[pageSize-1])
	}
	return info
}
