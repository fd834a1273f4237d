package unified

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/famomatic/vodfetch/internal/httpx"
	"github.com/famomatic/vodfetch/internal/types"
)

// FlexInt decodes numbers that some sites send as strings.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("flexint %q: %w", s, err)
		}
		*n = FlexInt(v)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = FlexInt(f)
	return nil
}

// TypeItem is one node of a site's category taxonomy.
type TypeItem struct {
	ID       FlexInt `json:"type_id"`
	ParentID FlexInt `json:"type_pid"`
	Name     string  `json:"type_name"`
}

// ListItem is an entry of an ac=list response.
type ListItem struct {
	ID       FlexInt `json:"vod_id"`
	Name     string  `json:"vod_name"`
	TypeID   FlexInt `json:"type_id"`
	TypeName string  `json:"type_name"`
}

// Detail is an entry of an ac=detail response.
type Detail struct {
	ID          FlexInt `json:"vod_id"`
	Name        string  `json:"vod_name"`
	TypeID      FlexInt `json:"type_id"`
	TypeName    string  `json:"type_name"`
	Year        string  `json:"vod_year"`
	Picture     string  `json:"vod_pic"`
	Description string  `json:"vod_content"`
	PlayFrom    string  `json:"vod_play_from"`
	PlayURL     string  `json:"vod_play_url"`
}

// Response is the envelope shared by every endpoint.
type Response[T any] struct {
	Code      int        `json:"code"`
	Msg       string     `json:"msg"`
	Page      FlexInt    `json:"page"`
	PageCount FlexInt    `json:"pagecount"`
	Total     FlexInt    `json:"total"`
	Limit     FlexInt    `json:"limit"`
	List      []T        `json:"list"`
	Class     []TypeItem `json:"class"`
}

// ListRequest filters an ac=list call. Zero values are sent as empty.
type ListRequest struct {
	Page    int
	Keyword string
	TypeID  int
}

// API talks to a MacCMS provide/vod endpoint.
type API struct {
	baseURL string
	fetcher httpx.Fetcher
}

// NewAPI returns an API for baseURL.
func NewAPI(baseURL string, fetcher httpx.Fetcher) *API {
	return &API{baseURL: baseURL, fetcher: fetcher}
}

// List runs ac=list.
func (a *API) List(ctx context.Context, req ListRequest) (*Response[ListItem], error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("ac", "list")
	q.Set("pg", strconv.Itoa(page))
	q.Set("wd", req.Keyword)
	q.Set("t", strconv.Itoa(req.TypeID))

	var res Response[ListItem]
	if err := a.get(ctx, q, &res); err != nil {
		return nil, err
	}
	if res.Code != 1 {
		return nil, &types.ParseError{What: "list response", Err: fmt.Errorf("code=%d msg=%q", res.Code, res.Msg)}
	}
	return &res, nil
}

// Details runs ac=detail for ids. A non-success code or an empty list is
// reported as *types.NotFoundError.
func (a *API) Details(ctx context.Context, ids []string) (*Response[Detail], error) {
	joined := strings.Join(ids, ",")
	q := url.Values{}
	q.Set("ac", "detail")
	q.Set("ids", joined)

	var res Response[Detail]
	if err := a.get(ctx, q, &res); err != nil {
		return nil, err
	}
	if res.Code != 1 {
		return nil, &types.NotFoundError{Kind: "media", ID: joined, Err: fmt.Errorf("invalid media id: code=%d msg=%q", res.Code, res.Msg)}
	}
	if len(res.List) == 0 {
		return nil, &types.NotFoundError{Kind: "media", ID: joined, Err: fmt.Errorf("invalid media id")}
	}
	return &res, nil
}

func (a *API) get(ctx context.Context, q url.Values, out any) error {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return fmt.Errorf("parse base url %q: %w", a.baseURL, err)
	}
	merged := u.Query()
	for k, vals := range q {
		merged[k] = vals
	}
	u.RawQuery = merged.Encode()

	body, err := a.fetcher.Get(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &types.ParseError{What: "api response", Err: fmt.Errorf("%w (%s)", err, snippet(body))}
	}
	return nil
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
