package normalize

import (
	"fmt"
	"strings"
	"time"

	"portalbridge/internal/extract"
	"portalbridge/internal/timezone"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// NewsItem is the canonical news entity. Id is always present, synthesized
// from array position when the upstream record has none; Url always
// resolves to news/{id} under the configured base.
type NewsItem struct {
	Id          string         `json:"id"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	PublishedAt time.Time      `json:"publishedAt"`
	Category    string         `json:"category"`
	Priority    Priority       `json:"priority"`
	Audience    []string       `json:"audience,omitempty"`
	Unread      bool           `json:"unread"`
	Important   bool           `json:"important"`
	Url         string         `json:"url"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// field-name alias tables, tried in order. These grow whenever a portal
// release renames something.
var (
	newsIdAliases       = []string{"id", "newsId", "articleId"}
	newsTitleAliases    = []string{"title", "name", "subject", "heading"}
	newsContentAliases  = []string{"content", "description", "body", "text", "summary"}
	newsCategoryAliases = []string{"category", "menuName", "type", "classification"}
	newsDateAliases     = []string{"publishedAt", "publishDate", "createdAt", "postedAt", "date", "updatedAt"}
	newsAudienceAliases = []string{"audience", "targets", "tags"}

	highPriorityFlags = []string{"isImportant", "important", "urgent", "isUrgent", "highPriority"}
	lowPriorityFlags  = []string{"isMinor", "minor", "lowPriority"}
)

// consumed lists every key the normalizer interprets; anything else is
// preserved verbatim on Extra for forward compatibility.
var newsConsumed = map[string]bool{}

func init() {
	for _, table := range [][]string{
		newsIdAliases, newsTitleAliases, newsContentAliases,
		newsCategoryAliases, newsDateAliases, newsAudienceAliases,
		highPriorityFlags, lowPriorityFlags,
		{"priority", "isUnread", "isRead", "url"},
	} {
		for _, key := range table {
			newsConsumed[key] = true
		}
	}
}

func classifyPriority(record extract.Record) Priority {
	if p, ok := record["priority"].(string); ok {
		switch strings.ToLower(p) {
		case "high", "urgent":
			return PriorityHigh
		case "low", "minor":
			return PriorityLow
		}
	}
	for _, flag := range highPriorityFlags {
		if v, present := record[flag]; present && truthy(v) {
			return PriorityHigh
		}
	}
	for _, flag := range lowPriorityFlags {
		if v, present := record[flag]; present && truthy(v) {
			return PriorityLow
		}
	}
	return PriorityMedium
}

// NewsItemFrom maps one recovered record onto the canonical shape.
// position synthesizes the id when the record carries none.
func NewsItemFrom(record extract.Record, position int, baseUrl string) NewsItem {
	id, ok := stringField(record, newsIdAliases...)
	if !ok {
		id = fmt.Sprintf("%d", position+1)
	}

	title, _ := stringField(record, newsTitleAliases...)
	content, _ := stringField(record, newsContentAliases...)
	category, _ := stringField(record, newsCategoryAliases...)

	publishedAt, ok := timeField(record, newsDateAliases...)
	if !ok {
		publishedAt = timezone.Now()
	}

	item := NewsItem{
		Id:          id,
		Title:       title,
		Content:     content,
		PublishedAt: publishedAt,
		Category:    category,
		Priority:    classifyPriority(record),
		Audience:    stringSliceField(record, newsAudienceAliases...),
		Url:         fmt.Sprintf("%s/news/%s", strings.TrimRight(baseUrl, "/"), id),
	}

	if v, present := record["isUnread"]; present {
		item.Unread = truthy(v)
	} else if v, present := record["isRead"]; present {
		item.Unread = !truthy(v)
	}
	item.Important = item.Priority == PriorityHigh

	for key, value := range record {
		if newsConsumed[key] {
			continue
		}
		if item.Extra == nil {
			item.Extra = map[string]any{}
		}
		item.Extra[key] = value
	}

	return item
}

// News maps a recovered record set onto canonical news items.
func News(records []extract.Record, baseUrl string) []NewsItem {
	items := make([]NewsItem, len(records))
	for i, record := range records {
		items[i] = NewsItemFrom(record, i, baseUrl)
	}
	return items
}
