package normalize

import (
	"testing"
	"time"

	"portalbridge/internal/extract"
	"portalbridge/internal/timezone"

	"github.com/stretchr/testify/require"
)

const testBaseUrl = "https://portal.example-school.jp/"

func TestNewsItemFromAliases(t *testing.T) {
	record := extract.Record{
		"articleId":   "42",
		"heading":     "Entrance ceremony",
		"summary":     "Details inside",
		"menuName":    "Events",
		"publishDate": "2024/04/01 09:30",
		"targets":     []any{"grade-1", "grade-2"},
	}

	item := NewsItemFrom(record, 0, testBaseUrl)

	require.Equal(t, "42", item.Id)
	require.Equal(t, "Entrance ceremony", item.Title)
	require.Equal(t, "Details inside", item.Content)
	require.Equal(t, "Events", item.Category)
	require.Equal(t, []string{"grade-1", "grade-2"}, item.Audience)
	require.Equal(t, "https://portal.example-school.jp/news/42", item.Url)

	want := time.Date(2024, 4, 1, 9, 30, 0, 0, timezone.Location)
	require.True(t, item.PublishedAt.Equal(want))
}

func TestNewsItemIdSynthesizedFromPosition(t *testing.T) {
	item := NewsItemFrom(extract.Record{"title": "no id here"}, 4, testBaseUrl)

	require.Equal(t, "5", item.Id)
	require.Equal(t, "https://portal.example-school.jp/news/5", item.Url)
}

func TestNewsItemNumericId(t *testing.T) {
	item := NewsItemFrom(extract.Record{"id": float64(7), "title": "t"}, 0, testBaseUrl)
	require.Equal(t, "7", item.Id)
}

func TestClassifyPriority(t *testing.T) {
	for _, tc := range []struct {
		record extract.Record
		want   Priority
	}{
		{extract.Record{"priority": "high"}, PriorityHigh},
		{extract.Record{"priority": "URGENT"}, PriorityHigh},
		{extract.Record{"priority": "low"}, PriorityLow},
		{extract.Record{"isImportant": true}, PriorityHigh},
		{extract.Record{"isImportant": "true"}, PriorityHigh},
		{extract.Record{"urgent": float64(1)}, PriorityHigh},
		{extract.Record{"isMinor": true}, PriorityLow},
		{extract.Record{"isImportant": false}, PriorityMedium},
		{extract.Record{}, PriorityMedium},
	} {
		require.Equal(t, tc.want, classifyPriority(tc.record), "%v", tc.record)
	}
}

func TestNewsItemUnread(t *testing.T) {
	require.True(t, NewsItemFrom(extract.Record{"isUnread": true}, 0, testBaseUrl).Unread)
	require.True(t, NewsItemFrom(extract.Record{"isRead": false}, 0, testBaseUrl).Unread)
	require.False(t, NewsItemFrom(extract.Record{"isRead": true}, 0, testBaseUrl).Unread)
	require.False(t, NewsItemFrom(extract.Record{}, 0, testBaseUrl).Unread)
}

func TestNewsItemPreservesUnknownFields(t *testing.T) {
	record := extract.Record{
		"id":          "1",
		"title":       "t",
		"attachments": []any{"a.pdf"},
	}

	item := NewsItemFrom(record, 0, testBaseUrl)

	require.Equal(t, map[string]any{"attachments": []any{"a.pdf"}}, item.Extra)
}

func TestNewsMissingDateDefaultsToNow(t *testing.T) {
	item := NewsItemFrom(extract.Record{"title": "undated"}, 0, testBaseUrl)
	require.WithinDuration(t, timezone.Now(), item.PublishedAt, time.Minute)
}
