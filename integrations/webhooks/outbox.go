package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

var bucketDeliveries = []byte("deliveries")

// Outbox keeps queued deliveries on disk until they are delivered or
// abandoned, so a restart replays what the previous process left behind.
// Delivery ids double as dedupe keys.
type Outbox struct {
	db *bbolt.DB
}

type outboxRecord struct {
	Event    EventType       `json:"event"`
	Body     json.RawMessage `json:"body"`
	QueuedAt time.Time       `json:"queuedAt"`
}

// OpenOutbox opens or creates the bbolt outbox at path.
func OpenOutbox(path string) (*Outbox, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("webhook: outbox path required")
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("webhook: open outbox: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDeliveries)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Outbox{db: db}, nil
}

// Close releases the underlying database.
func (o *Outbox) Close() error {
	if o == nil || o.db == nil {
		return nil
	}
	return o.db.Close()
}

// Len reports the number of deliveries awaiting delivery.
func (o *Outbox) Len() (int, error) {
	count := 0
	err := o.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(bucketDeliveries).Stats().KeyN
		return nil
	})
	return count, err
}

// put stores job unless a delivery with the same id is already pending. It
// reports whether the job was added.
func (o *Outbox) put(job delivery) (bool, error) {
	record, err := json.Marshal(outboxRecord{Event: job.eventType, Body: job.body, QueuedAt: time.Now().UTC()})
	if err != nil {
		return false, err
	}
	added := false
	err = o.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDeliveries)
		if bucket.Get([]byte(job.id)) != nil {
			return nil
		}
		added = true
		return bucket.Put([]byte(job.id), record)
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

func (o *Outbox) delete(id string) error {
	return o.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDeliveries).Delete([]byte(id))
	})
}

// pending returns the stored deliveries oldest first.
func (o *Outbox) pending() ([]delivery, error) {
	type entry struct {
		job      delivery
		queuedAt time.Time
	}
	var entries []entry
	err := o.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDeliveries).ForEach(func(k, v []byte) error {
			var record outboxRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("webhook: decode outbox entry %s: %w", k, err)
			}
			entries = append(entries, entry{
				job:      delivery{id: string(k), eventType: record.Event, body: append([]byte(nil), record.Body...)},
				queuedAt: record.QueuedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].queuedAt.Before(entries[j].queuedAt) })
	jobs := make([]delivery, len(entries))
	for i, e := range entries {
		jobs[i] = e.job
	}
	return jobs, nil
}
