package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Value is one property to write on a page. Title marks the database's
// title column; every other value is written as rich text.
type Value struct {
	Property string
	Text     string
	Title    bool
}

// Properties converts values into Notion page properties.
func Properties(values []Value) notionapi.Properties {
	props := make(notionapi.Properties, len(values))
	for _, v := range values {
		rt := []notionapi.RichText{{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: v.Text},
		}}
		if v.Title {
			props[v.Property] = notionapi.TitleProperty{Title: rt}
		} else {
			props[v.Property] = notionapi.RichTextProperty{RichText: rt}
		}
	}
	return props
}

// CreateDatabasePage creates a page in dbID and returns its ID. Client errors
// are returned unwrapped so a StatusError stays visible.
func CreateDatabasePage(ctx context.Context, c Client, dbID string, values []Value) (string, error) {
	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: Properties(values),
	})
	if err != nil {
		return "", err
	}
	return string(page.ID), nil
}

// UpdateDatabasePage overwrites the given properties on pageID.
func UpdateDatabasePage(ctx context.Context, c Client, pageID string, values []Value) error {
	if pageID == "" {
		return eris.New("notion: page id is required")
	}
	_, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: Properties(values)})
	return err
}

// PropertyText returns the plain text of a title or rich-text property on a
// page, or "" when the property is absent or of another type.
func PropertyText(page *notionapi.Page, property string) string {
	if page == nil {
		return ""
	}
	var rt []notionapi.RichText
	switch p := page.Properties[property].(type) {
	case *notionapi.TitleProperty:
		rt = p.Title
	case notionapi.TitleProperty:
		rt = p.Title
	case *notionapi.RichTextProperty:
		rt = p.RichText
	case notionapi.RichTextProperty:
		rt = p.RichText
	default:
		return ""
	}
	var b strings.Builder
	for _, r := range rt {
		switch {
		case r.PlainText != "":
			b.WriteString(r.PlainText)
		case r.Text != nil:
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}
