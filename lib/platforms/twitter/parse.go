package twitter

import (
	"encoding/json"
	"fmt"
	"time"

	"bookmark-extract/lib/recordset"
)

// createdAtLayout is the legacy timeline timestamp format.
const createdAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

type bookmarksPage struct {
	Records    []recordset.Record
	NextCursor string
	HasMore    bool
}

type rawTweet struct {
	IdStr     string `json:"id_str"`
	FullText  string `json:"full_text"`
	CreatedAt string `json:"created_at"`
	User      struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`
}

type rawTimeline struct {
	Tweets []rawTweet `json:"tweets"`
	Cursor struct {
		Bottom string `json:"bottom"`
	} `json:"cursor"`
	HasMore bool `json:"has_more_items"`
}

func parseBookmarksPage(body []byte) (bookmarksPage, error) {
	var timeline rawTimeline
	err := json.Unmarshal(body, &timeline)
	if err != nil {
		return bookmarksPage{}, fmt.Errorf("malformed bookmarks timeline: %w", err)
	}

	records := make([]recordset.Record, 0, len(timeline.Tweets))
	for _, t := range timeline.Tweets {
		if t.IdStr == "" {
			continue
		}
		date, err := time.Parse(createdAtLayout, t.CreatedAt)
		if err != nil {
			// the timestamp is metadata, a bad one shouldn't drop the record
			date = time.Time{}
		}
		records = append(records, recordset.Record{
			Id:     t.IdStr,
			Text:   t.FullText,
			Author: t.User.ScreenName,
			Link:   fmt.Sprintf("%s/%s/status/%s", BaseUrl, t.User.ScreenName, t.IdStr),
			Date:   date,
		})
	}

	return bookmarksPage{
		Records:    records,
		NextCursor: timeline.Cursor.Bottom,
		HasMore:    timeline.HasMore && timeline.Cursor.Bottom != "",
	}, nil
}
