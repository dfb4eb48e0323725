package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JakeFAU/followwatch/internal/tracker"
)

// flexString decodes a JSON string or number into its textual form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode identifier: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt decodes a JSON number or numeric string.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return fmt.Errorf("decode count: %w", err)
	}
	*f = flexInt(n)
	return nil
}

type edgeCount struct {
	Count flexInt `json:"count"`
}

type rawUser struct {
	PK             flexString `json:"pk"`
	PKID           flexString `json:"pk_id"`
	ID             flexString `json:"id"`
	UserID         flexString `json:"user_id"`
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	IsPrivate      bool       `json:"is_private"`
	FollowingCount *flexInt   `json:"following_count"`
	FollowerCount  *flexInt   `json:"follower_count"`
	EdgeFollow     *edgeCount `json:"edge_follow"`
	EdgeFollowedBy *edgeCount `json:"edge_followed_by"`
}

func (u rawUser) id() string {
	for _, v := range []flexString{u.PK, u.PKID, u.ID, u.UserID} {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

func (u rawUser) empty() bool {
	return u.id() == "" && strings.TrimSpace(u.Username) == ""
}

func (u rawUser) profile() tracker.Profile {
	p := tracker.Profile{
		ID:        u.id(),
		Handle:    strings.TrimSpace(u.Username),
		FullName:  u.FullName,
		IsPrivate: u.IsPrivate,
	}
	switch {
	case u.FollowingCount != nil:
		p.FollowingCount = int(*u.FollowingCount)
	case u.EdgeFollow != nil:
		p.FollowingCount = int(u.EdgeFollow.Count)
	}
	switch {
	case u.FollowerCount != nil:
		p.FollowerCount = int(*u.FollowerCount)
	case u.EdgeFollowedBy != nil:
		p.FollowerCount = int(u.EdgeFollowedBy.Count)
	}
	return p
}

type rawCandidate struct {
	URL    string  `json:"url"`
	Width  flexInt `json:"width"`
	Height flexInt `json:"height"`
}

type rawMedia struct {
	ID             flexString `json:"id"`
	PK             flexString `json:"pk"`
	MediaType      *flexInt   `json:"media_type"`
	ImageVersions2 *struct {
		Candidates []rawCandidate `json:"candidates"`
	} `json:"image_versions2"`
	CarouselMedia []rawMedia `json:"carousel_media"`
}

func (m rawMedia) post() tracker.Post {
	p := tracker.Post{ID: string(m.ID)}
	if p.ID == "" {
		p.ID = string(m.PK)
	}
	if m.MediaType != nil {
		p.Kind = tracker.MediaKind(*m.MediaType)
	}
	if m.ImageVersions2 != nil {
		for _, c := range m.ImageVersions2.Candidates {
			if strings.TrimSpace(c.URL) == "" {
				continue
			}
			p.Candidates = append(p.Candidates, tracker.ImageCandidate{
				URL:    c.URL,
				Width:  int(c.Width),
				Height: int(c.Height),
			})
		}
	}
	for _, child := range m.CarouselMedia {
		p.Children = append(p.Children, child.post())
	}
	return p
}

// envelopeKeys are the wrapper keys providers nest payloads under, in lookup order.
var envelopeKeys = []string{"data", "response", "result"}

// nodes returns the root object followed by every nested envelope object, depth-first.
func nodes(body []byte) ([]map[string]json.RawMessage, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, err
	}
	out := []map[string]json.RawMessage{root}
	for _, key := range envelopeKeys {
		raw, ok := root[key]
		if !ok {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(raw, &inner); err == nil && inner != nil {
			out = append(out, inner)
		}
	}
	return out, nil
}

func isBlank(body []byte) bool {
	t := bytes.TrimSpace(body)
	return len(t) == 0 || string(t) == "null" || string(t) == "{}"
}

func isArray(body []byte) bool {
	t := bytes.TrimSpace(body)
	return len(t) > 0 && t[0] == '['
}

func notFound(subject string) error {
	return tracker.NewUpstreamError(http.StatusNotFound, subject+" not found")
}

func shapeError(operation string) error {
	return &tracker.UpstreamError{
		Status:  http.StatusBadGateway,
		Message: "unexpected " + operation + " response shape",
	}
}

// decodeUser finds the first user object among root, root.user and the nested envelopes.
func decodeUser(body []byte, operation string) (rawUser, error) {
	if isBlank(body) {
		return rawUser{}, notFound("account")
	}
	objs, err := nodes(body)
	if err != nil {
		return rawUser{}, shapeError(operation)
	}
	for _, obj := range objs {
		if raw, ok := obj["user"]; ok {
			var u rawUser
			if err := json.Unmarshal(raw, &u); err == nil && !u.empty() {
				return u, nil
			}
		}
		raw, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		var u rawUser
		if err := json.Unmarshal(raw, &u); err == nil && !u.empty() {
			return u, nil
		}
	}
	return rawUser{}, notFound("account")
}

func decodeUserID(body []byte) (string, error) {
	u, err := decodeUser(body, "user id")
	if err != nil {
		return "", err
	}
	id, err := tracker.NormalizeID(u.id())
	if err != nil {
		return "", notFound("account")
	}
	return id, nil
}

func decodeProfile(body []byte) (tracker.Profile, error) {
	u, err := decodeUser(body, "profile")
	if err != nil {
		return tracker.Profile{}, err
	}
	return u.profile(), nil
}

// decodeList locates the list payload under one of keys, or accepts a bare array.
func decodeList(body []byte, operation string, keys ...string) (json.RawMessage, error) {
	if isArray(body) {
		return body, nil
	}
	objs, err := nodes(body)
	if err != nil {
		return nil, shapeError(operation)
	}
	for _, obj := range objs {
		for _, key := range keys {
			raw, ok := obj[key]
			if ok && isArray(raw) {
				return raw, nil
			}
		}
	}
	return nil, shapeError(operation)
}

func decodeFollowings(body []byte) ([]tracker.Account, error) {
	raw, err := decodeList(body, "followings", "users", "followings", "items")
	if err != nil {
		return nil, err
	}
	var users []rawUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, shapeError("followings")
	}
	out := make([]tracker.Account, 0, len(users))
	for _, u := range users {
		handle := strings.TrimSpace(u.Username)
		if handle == "" {
			continue
		}
		out = append(out, tracker.Account{ID: u.id(), Handle: handle})
	}
	return out, nil
}

func decodePosts(body []byte) ([]tracker.Post, error) {
	raw, err := decodeList(body, "recent posts", "items", "posts")
	if err != nil {
		return nil, err
	}
	var items []rawMedia
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, shapeError("recent posts")
	}
	out := make([]tracker.Post, 0, len(items))
	for _, m := range items {
		out = append(out, m.post())
	}
	return out, nil
}

// upstreamMessage extracts a human-readable message from an error body.
func upstreamMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, m := range []string{payload.Message, payload.Error, payload.Detail} {
			if m = strings.TrimSpace(m); m != "" {
				return m
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text != "" && !strings.HasPrefix(text, "<") {
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	return http.StatusText(status)
}
