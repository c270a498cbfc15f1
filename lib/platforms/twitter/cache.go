package twitter

import (
	"context"
	"net/url"
	"time"

	"github.com/PuerkitoBio/purell"
	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// pageCache keeps fetched bookmark pages for the duration of a run so a
// re-surfaced cursor is not pulled twice. A nil db disables it entirely.
type pageCache struct {
	db *badger.DB
}

func (c pageCache) key(endpoint string) (string, bool) {
	full, err := url.Parse(BaseUrl + endpoint)
	if err != nil {
		return "", false
	}
	return purell.NormalizeURL(
		full,
		purell.FlagsSafe|purell.FlagsUsuallySafeNonGreedy,
	), true
}

func (c pageCache) get(ctx context.Context, endpoint string) ([]byte, bool) {
	if c.db == nil {
		return nil, false
	}
	_, span := tracer.Start(ctx, "cache:get")
	defer span.End()

	key, ok := c.key(endpoint)
	if !ok {
		return nil, false
	}
	span.SetAttributes(attribute.String("custom.cache_key", key))

	var contents []byte
	err := c.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if err != nil {
			return err
		}
		contents, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}
	return contents, true
}

func (c pageCache) set(ctx context.Context, endpoint string, contents []byte, lifetime time.Duration) {
	if c.db == nil {
		return
	}
	_, span := tracer.Start(ctx, "cache:set")
	defer span.End()

	key, ok := c.key(endpoint)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("custom.cache_key", key))

	err := c.db.Update(func(tx *badger.Txn) error {
		return tx.SetEntry(badger.NewEntry([]byte(key), contents).WithTTL(lifetime))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write cached page")
	}
}
