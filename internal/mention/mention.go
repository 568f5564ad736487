// Package mention parses comment text into render segments: plain text,
// user and everyone mentions, and URLs classified by media type. Parsing
// is lossless; concatenating every segment's Value reproduces the input.
package mention

import (
	"regexp"
	"strings"
)

// SegmentType discriminates the parsed segments.
type SegmentType string

const (
	SegmentText     SegmentType = "text"
	SegmentMention  SegmentType = "mention"
	SegmentEveryone SegmentType = "everyone"
	SegmentImage    SegmentType = "image"
	SegmentVideo    SegmentType = "video"
	SegmentLink     SegmentType = "link"
)

// Segment is one parsed run of the input. Value holds the exact source
// text of the run. UserID is set only for SegmentMention.
type Segment struct {
	Type   SegmentType `json:"type"`
	Value  string      `json:"value"`
	UserID string      `json:"userId,omitempty"`
}

// EveryoneName is the display name that addresses every active member.
const EveryoneName = "everyone"

// mentionPattern matches @[Display Name](24-hex-id). The id group is
// optional so the bare @[everyone] form also matches.
var mentionPattern = regexp.MustCompile(`@\[([^\]]+)\](?:\(([a-f0-9]{24})\))?`)

// urlPattern matches a scheme followed by non-whitespace. Plain text is
// split around these runs in a second pass.
var urlPattern = regexp.MustCompile(`https?://\S+`)

var imageExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {}, "svg": {},
}

var videoExtensions = map[string]struct{}{
	"mp4": {}, "webm": {}, "mov": {}, "avi": {}, "mkv": {},
}

// Parse splits content into segments. Mention tokens are extracted first,
// then URLs inside the remaining text runs.
func Parse(content string) []Segment {
	if content == "" {
		return nil
	}

	var segments []Segment
	last := 0
	for _, m := range mentionPattern.FindAllStringSubmatchIndex(content, -1) {
		start, end := m[0], m[1]
		if start > last {
			segments = append(segments, splitURLs(content[last:start])...)
		}

		token := content[start:end]
		name := content[m[2]:m[3]]
		userID := ""
		if m[4] >= 0 {
			userID = content[m[4]:m[5]]
		}

		if name == EveryoneName && userID == "" {
			segments = append(segments, Segment{Type: SegmentEveryone, Value: token})
		} else if userID != "" {
			segments = append(segments, Segment{Type: SegmentMention, Value: token, UserID: userID})
		} else {
			// A bracketed name without an id is not a mention.
			segments = append(segments, splitURLs(token)...)
		}
		last = end
	}
	if last < len(content) {
		segments = append(segments, splitURLs(content[last:])...)
	}
	return segments
}

func splitURLs(text string) []Segment {
	var segments []Segment
	last := 0
	for _, m := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := m[0], m[1]
		if start > last {
			segments = append(segments, Segment{Type: SegmentText, Value: text[last:start]})
		}
		url := text[start:end]
		segments = append(segments, Segment{Type: classifyURL(url), Value: url})
		last = end
	}
	if last < len(text) {
		segments = append(segments, Segment{Type: SegmentText, Value: text[last:]})
	}
	return segments
}

// classifyURL picks image, video, or link from the path extension. Query
// strings and fragments are ignored when locating the extension.
func classifyURL(url string) SegmentType {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	dot := strings.LastIndex(path, ".")
	slash := strings.LastIndex(path, "/")
	if dot < 0 || dot < slash {
		return SegmentLink
	}
	ext := strings.ToLower(path[dot+1:])
	if _, ok := imageExtensions[ext]; ok {
		return SegmentImage
	}
	if _, ok := videoExtensions[ext]; ok {
		return SegmentVideo
	}
	return SegmentLink
}
