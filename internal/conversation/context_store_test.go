package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking-engine/internal/intent"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisContextStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisContextStore(client, ttl), mr
}

func storeImplementations(t *testing.T) map[string]ContextStore {
	redisStore, _ := newRedisStore(t, 0)
	return map[string]ContextStore{
		"memory": NewMemoryContextStore(),
		"redis":  redisStore,
	}
}

func TestContextStoreUpsertMergesFields(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Get(ctx, "acc", "s1")
			require.ErrorIs(t, err, ErrConversationNotFound)

			_, err = store.Upsert(ctx, "acc", "s1", Patch{
				SelectedDoctorID:   ptr("doc-1"),
				SelectedDoctorName: ptr("Dr. Priya Sharma"),
				PendingBooking:     ptr(true),
				ExtractedInfo:      map[string]string{"specialty": "Neurology", "time": "10:00 AM"},
			})
			require.NoError(t, err)

			conv, err := store.Upsert(ctx, "acc", "s1", Patch{
				PendingBooking: ptr(false),
				ExtractedInfo:  map[string]string{"time": ""},
			})
			require.NoError(t, err)
			assert.False(t, conv.Context.PendingBooking)
			assert.Equal(t, "doc-1", conv.Context.SelectedDoctorID, "untouched fields survive")
			assert.Equal(t, map[string]string{"specialty": "Neurology"}, conv.Context.ExtractedInfo)
			assert.Equal(t, DefaultLanguage, conv.Context.PreferredLanguage)
			assert.True(t, conv.IsActive)
		})
	}
}

func TestContextStoreRejectsPendingWithoutDoctor(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Upsert(ctx, "acc", "s1", Patch{PendingBooking: ptr(true)})
			assert.ErrorIs(t, err, ErrPendingWithoutDoctor)
		})
	}
}

func TestContextStoreSessionsAreIsolated(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			refs := []intent.DoctorRef{{Key: "dr. a", ID: "a", Name: "Dr. A"}}
			_, err := store.Upsert(ctx, "acc", "s1", Patch{LastDoctors: &refs})
			require.NoError(t, err)
			_, err = store.Upsert(ctx, "acc", "s2", Patch{LastIntent: ptr(intent.Unknown)})
			require.NoError(t, err)

			other, err := store.Get(ctx, "acc", "s2")
			require.NoError(t, err)
			assert.Empty(t, other.Context.LastDoctors)

			_, err = store.Get(ctx, "other-acc", "s1")
			assert.ErrorIs(t, err, ErrConversationNotFound)
		})
	}
}

func TestContextStoreConcurrentAppendsKeepEveryMessage(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const writers = 12
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					err := store.AppendMessages(ctx, "acc", "s1", Message{Role: ChatRoleUser, Text: fmt.Sprintf("m%d", i)})
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			conv, err := store.Get(ctx, "acc", "s1")
			require.NoError(t, err)
			assert.Len(t, conv.Messages, writers)
			for _, m := range conv.Messages {
				assert.False(t, m.Timestamp.IsZero())
			}
		})
	}
}

func TestContextStoreArchive(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, store.Archive(ctx, "acc", "missing"), ErrConversationNotFound)

			require.NoError(t, store.AppendMessages(ctx, "acc", "s1", Message{Role: ChatRoleUser, Text: "hi"}))
			require.NoError(t, store.Archive(ctx, "acc", "s1"))

			conv, err := store.Get(ctx, "acc", "s1")
			require.NoError(t, err)
			assert.False(t, conv.IsActive)
			assert.Len(t, conv.Messages, 1, "archive keeps the transcript")
		})
	}
}

func TestRedisContextStoreTTL(t *testing.T) {
	ctx := context.Background()

	store, mr := newRedisStore(t, time.Hour)
	require.NoError(t, store.AppendMessages(ctx, "acc", "s1", Message{Role: ChatRoleUser, Text: "hi"}))
	assert.Equal(t, time.Hour, mr.TTL(conversationKey("acc", "s1")))
	mr.FastForward(2 * time.Hour)
	_, err := store.Get(ctx, "acc", "s1")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	forever, mr2 := newRedisStore(t, 0)
	require.NoError(t, forever.AppendMessages(ctx, "acc", "s1", Message{Role: ChatRoleUser, Text: "hi"}))
	assert.Zero(t, mr2.TTL(conversationKey("acc", "s1")))
}

func TestConversationRecent(t *testing.T) {
	conv := &Conversation{}
	for i := 0; i < 7; i++ {
		conv.Messages = append(conv.Messages, Message{Text: fmt.Sprint(i)})
	}
	recent := conv.Recent(5)
	require.Len(t, recent, 5)
	assert.Equal(t, "2", recent[0].Text)
	assert.Len(t, conv.Recent(0), 7)
}

func TestStateApplyKeepsOriginalOnError(t *testing.T) {
	s := State{LastIntent: intent.FindDoctor}
	out, err := s.Apply(Patch{PendingBooking: ptr(true), LastIntent: ptr(intent.ConfirmBooking)})
	assert.ErrorIs(t, err, ErrPendingWithoutDoctor)
	assert.Equal(t, intent.FindDoctor, out.LastIntent)
}
