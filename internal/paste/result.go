package paste

import (
	"net/url"
	"strings"

	"pastebin/internal/pastepath"
)

// Result describes a paste after a successful write.
type Result struct {
	Short    string
	Secret   string
	Filename string
	Private  bool
	Expire   int64
	IsURL    bool
}

// Response is the JSON body returned for writes.
type Response struct {
	URL        string  `json:"url"`
	SuggestURL *string `json:"suggestUrl"`
	Admin      string  `json:"admin"`
	IsPrivate  bool    `json:"isPrivate"`
	Expire     *int64  `json:"expire"`
}

// Response renders r against baseURL, which has no trailing slash.
func (r *Result) Response(baseURL string) Response {
	baseURL = strings.TrimSuffix(baseURL, "/")
	resp := Response{
		URL:       baseURL + pastepath.Public(r.Short),
		Admin:     baseURL + pastepath.Admin(r.Short, r.Secret),
		IsPrivate: r.Private,
	}
	switch {
	case r.Filename != "":
		s := baseURL + pastepath.WithFilename(r.Short, url.PathEscape(r.Filename))
		resp.SuggestURL = &s
	case r.IsURL:
		s := baseURL + pastepath.WithRole("u", r.Short)
		resp.SuggestURL = &s
	}
	if r.Expire > 0 {
		e := r.Expire
		resp.Expire = &e
	}
	return resp
}
