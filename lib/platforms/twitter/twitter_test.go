package twitter

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestClassify(t *testing.T) {
	cases := []struct {
		url  string
		want Location
	}{
		{BaseUrl + "/i/bookmarks", LocationBookmarks},
		{BaseUrl + "/i/bookmarks?cursor=abc", LocationBookmarks},
		{BaseUrl + "/account/login_verification", LocationTwoFactor},
		{BaseUrl + "/account/login_challenge", LocationChallenge},
		{BaseUrl + "/login", LocationLogin},
		{BaseUrl + "/sessions", LocationLogin},
		{BaseUrl + "/logout", LocationLoggedOut},
		{BaseUrl + "/home", LocationUnknown},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Classify(mustParse(t, c.url)), c.url)
	}
	require.Equal(t, LocationUnknown, Classify(nil))
}

func TestParseBookmarksPage(t *testing.T) {
	body := []byte(`{
		"tweets": [
			{
				"id_str": "100",
				"full_text": "a bookmarked tweet",
				"created_at": "Wed Oct 10 20:19:24 +0000 2018",
				"user": {"screen_name": "someone"}
			},
			{
				"id_str": "101",
				"full_text": "another one",
				"created_at": "not a timestamp",
				"user": {"screen_name": "noone"}
			},
			{"id_str": "", "full_text": "dropped, no id"}
		],
		"cursor": {"bottom": "cursor-2"},
		"has_more_items": true
	}`)

	page, err := parseBookmarksPage(body)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	require.True(t, page.HasMore)
	require.Equal(t, "cursor-2", page.NextCursor)

	first := page.Records[0]
	require.Equal(t, "100", first.Id)
	require.Equal(t, "someone", first.Author)
	require.Equal(t, BaseUrl+"/someone/status/100", first.Link)
	require.Equal(t, 2018, first.Date.Year())

	// a bad timestamp keeps the record, just without a date
	require.True(t, page.Records[1].Date.IsZero())
}

func TestParseBookmarksPageLastPage(t *testing.T) {
	page, err := parseBookmarksPage([]byte(`{"tweets": [], "cursor": {"bottom": ""}, "has_more_items": true}`))
	require.NoError(t, err)
	// an empty bottom cursor means exhaustion regardless of has_more_items
	require.False(t, page.HasMore)

	_, err = parseBookmarksPage([]byte(`{not json`))
	require.Error(t, err)
}

func TestPageCache(t *testing.T) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	cache := pageCache{db: db}

	_, ok := cache.get(ctx, "/i/api/bookmarks/all.json?cursor=a")
	require.False(t, ok)

	cache.set(ctx, "/i/api/bookmarks/all.json?cursor=a", []byte(`{"tweets":[]}`), time.Minute)
	contents, ok := cache.get(ctx, "/i/api/bookmarks/all.json?cursor=a")
	require.True(t, ok)
	require.Equal(t, []byte(`{"tweets":[]}`), contents)

	// disabled cache is a no-op
	disabled := pageCache{}
	disabled.set(ctx, "/x", []byte("y"), time.Minute)
	_, ok = disabled.get(ctx, "/x")
	require.False(t, ok)
}
