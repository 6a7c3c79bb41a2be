package state

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	bolt "go.etcd.io/bbolt"

	"github.com/AmitS1009/Constructure-AI/pkg/messages"
)

// DefaultThreadTitle is used until a thread has a user question.
const DefaultThreadTitle = "New Chat"

// maxTitleRunes bounds thread titles derived from the first question.
const maxTitleRunes = 60

var threadsBucket = []byte("threads")

// ErrThreadNotFound is returned for a thread the store does not hold.
var ErrThreadNotFound = errors.New("thread not found")

// Thread summarizes one stored conversation.
type Thread struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// BoltStore keeps threads and their messages in a local bbolt file. Each
// thread has a record in the threads bucket and its own message bucket keyed
// by insertion sequence.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(threadsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize bolt db: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

func threadKey(id int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(id))
}

func messageBucketName(threadID int64) []byte {
	return []byte(fmt.Sprintf("thread-%d", threadID))
}

// ThreadTitle derives a thread title from its first question.
func ThreadTitle(question string) string {
	title := strings.Join(strings.Fields(question), " ")
	if title == "" {
		return DefaultThreadTitle
	}
	if utf8.RuneCountInString(title) <= maxTitleRunes {
		return title
	}
	runes := []rune(title)
	return strings.TrimSpace(string(runes[:maxTitleRunes]))
}

// SaveTurn appends msgs to the thread, creating it on first use. The thread
// title comes from the first user message ever saved to it.
func (b *BoltStore) SaveTurn(ctx context.Context, threadID int64, msgs ...messages.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if threadID <= 0 {
		return fmt.Errorf("invalid thread id %d", threadID)
	}

	now := time.Now().UTC()
	return b.db.Update(func(tx *bolt.Tx) error {
		threads := tx.Bucket(threadsBucket)

		thread := Thread{ID: threadID, CreatedAt: now}
		if v := threads.Get(threadKey(threadID)); v != nil {
			if err := json.Unmarshal(v, &thread); err != nil {
				return fmt.Errorf("failed to unmarshal thread: %w", err)
			}
		}

		bucket, err := tx.CreateBucketIfNotExists(messageBucketName(threadID))
		if err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		for _, msg := range msgs {
			if thread.Title == "" && msg.Role == messages.RoleUser {
				thread.Title = ThreadTitle(msg.Content)
			}

			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("failed to get next sequence: %w", err)
			}
			v, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("failed to marshal message: %w", err)
			}
			if err := bucket.Put(binary.BigEndian.AppendUint64(nil, seq), v); err != nil {
				return err
			}
			thread.MessageCount++
		}

		if thread.Title == "" {
			thread.Title = DefaultThreadTitle
		}
		thread.UpdatedAt = now

		v, err := json.Marshal(thread)
		if err != nil {
			return fmt.Errorf("failed to marshal thread: %w", err)
		}
		return threads.Put(threadKey(threadID), v)
	})
}

// Threads returns all stored threads, newest first.
func (b *BoltStore) Threads(ctx context.Context) ([]Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var threads []Thread
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(threadsBucket).ForEach(func(_, v []byte) error {
			var thread Thread
			if err := json.Unmarshal(v, &thread); err != nil {
				return fmt.Errorf("failed to unmarshal thread: %w", err)
			}
			threads = append(threads, thread)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(threads, func(a, b Thread) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	return threads, nil
}

// Thread returns the record of one thread.
func (b *BoltStore) Thread(ctx context.Context, threadID int64) (Thread, error) {
	if err := ctx.Err(); err != nil {
		return Thread{}, err
	}

	var thread Thread
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(threadsBucket).Get(threadKey(threadID))
		if v == nil {
			return fmt.Errorf("thread %d: %w", threadID, ErrThreadNotFound)
		}
		return json.Unmarshal(v, &thread)
	})
	return thread, err
}

// Messages returns the messages of a thread in the order they were saved.
func (b *BoltStore) Messages(ctx context.Context, threadID int64) ([]messages.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var msgs []messages.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(messageBucketName(threadID))
		if bucket == nil {
			return fmt.Errorf("thread %d: %w", threadID, ErrThreadNotFound)
		}

		return bucket.ForEach(func(_, v []byte) error {
			var msg messages.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			msgs = append(msgs, msg)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteThread removes a thread and all of its messages.
func (b *BoltStore) DeleteThread(ctx context.Context, threadID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		threads := tx.Bucket(threadsBucket)
		if threads.Get(threadKey(threadID)) == nil {
			return fmt.Errorf("thread %d: %w", threadID, ErrThreadNotFound)
		}
		if err := threads.Delete(threadKey(threadID)); err != nil {
			return err
		}
		err := tx.DeleteBucket(messageBucketName(threadID))
		if err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to delete message bucket: %w", err)
		}
		return nil
	})
}
