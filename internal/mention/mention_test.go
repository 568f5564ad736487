package mention

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	aliceID = "64f1a2b3c4d5e6f708192a3b"
	bobID   = "64f1a2b3c4d5e6f708192a3c"
	carolID = "64f1a2b3c4d5e6f708192a3d"
)

func joinValues(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Value)
	}
	return b.String()
}

func TestParseLossless(t *testing.T) {
	inputs := []string{
		"",
		"plain text only",
		"hey @[Alice](" + aliceID + ") look at https://x.co/a.png now",
		"@[everyone] standup in 5",
		"broken @[Alice]( trailing",
		"@[No ID] plus https://example.com/doc?x=1#frag tail",
		"https://a.co/v.MP4https://b.co/p.jpg",
		"unicode héllo @[Bob](" + bobID + ") ümlaut",
	}
	for _, in := range inputs {
		require.Equal(t, in, joinValues(Parse(in)), "input %q", in)
	}
}

func TestParseSegmentTypes(t *testing.T) {
	content := "hi @[Alice](" + aliceID + ") see https://x.co/shot.png and https://x.co/clip.webm or https://x.co/page"
	segs := Parse(content)

	var types []SegmentType
	for _, s := range segs {
		types = append(types, s.Type)
	}
	require.Equal(t, []SegmentType{
		SegmentText, SegmentMention, SegmentText,
		SegmentImage, SegmentText, SegmentVideo,
		SegmentText, SegmentLink,
	}, types)

	require.Equal(t, aliceID, segs[1].UserID)
	require.Equal(t, "@[Alice]("+aliceID+")", segs[1].Value)
}

func TestParseEveryone(t *testing.T) {
	segs := Parse("@[everyone] meeting")
	require.Equal(t, SegmentEveryone, segs[0].Type)
	require.Equal(t, "@[everyone]", segs[0].Value)
	require.Empty(t, segs[0].UserID)
}

func TestParseBracketedNameWithoutIDIsText(t *testing.T) {
	segs := Parse("@[Just Brackets] here")
	for _, s := range segs {
		require.Equal(t, SegmentText, s.Type)
	}
}

func TestClassifyURL(t *testing.T) {
	cases := map[string]SegmentType{
		"https://x.co/a.png":          SegmentImage,
		"https://x.co/a.JPEG":         SegmentImage,
		"https://x.co/a.svg?w=2":      SegmentImage,
		"https://x.co/v.mp4":          SegmentVideo,
		"https://x.co/v.MKV#t=30":     SegmentVideo,
		"https://x.co/readme.pdf":     SegmentLink,
		"https://x.co/no-extension":   SegmentLink,
		"https://x.co/v1.2/endpoint":  SegmentLink,
		"http://x.co/pic.webp":        SegmentImage,
		"https://x.co/a.png/trailing": SegmentLink,
	}
	for url, want := range cases {
		require.Equal(t, want, classifyURL(url), "url %s", url)
	}
}

func TestExtractMentionedUserIDs(t *testing.T) {
	members := []TeamMember{
		{ID: aliceID, IsActive: true},
		{ID: bobID, IsActive: true},
		{ID: carolID, IsActive: false},
	}

	t.Run("author excluded", func(t *testing.T) {
		got := ExtractMentionedUserIDs(
			"@[Alice]("+aliceID+") and @[Bob]("+bobID+")", members, aliceID)
		require.Equal(t, []string{bobID}, got)
	})

	t.Run("inactive dropped", func(t *testing.T) {
		got := ExtractMentionedUserIDs("@[Carol]("+carolID+")", members, aliceID)
		require.Empty(t, got)
	})

	t.Run("unknown dropped", func(t *testing.T) {
		got := ExtractMentionedUserIDs(
			"@[Ghost](64f1a2b3c4d5e6f708192aff)", members, aliceID)
		require.Empty(t, got)
	})

	t.Run("everyone expands to active members minus author", func(t *testing.T) {
		got := ExtractMentionedUserIDs("@[everyone]", members, aliceID)
		require.Equal(t, []string{bobID}, got)
	})

	t.Run("duplicates collapse", func(t *testing.T) {
		got := ExtractMentionedUserIDs(
			"@[Bob]("+bobID+") again @[Bob]("+bobID+") and @[everyone]",
			members, aliceID)
		require.Equal(t, []string{bobID}, got)
	})
}
