package academic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
)

func TestRecordID(t *testing.T) {
	tests := []struct {
		record  interface{}
		want    string
		wantErr bool
	}{
		{record: Group{ID: "g1"}, want: "g1"},
		{record: Subject{ID: "sub1"}, want: "sub1"},
		{record: Enrollment{ID: "e1"}, want: "e1"},
		{record: history.Entry{ID: 42}, want: "42"},
		{record: &Group{ID: "g1"}, wantErr: true},
		{record: "lol", wantErr: true},
	}
	for _, tt := range tests {
		got, err := RecordID(tt.record)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestRetryingAdapter(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers", func(t *testing.T) {
		fake := newFakeAdapter()
		failures := 2
		fake.fail = func(string, Kind, string) error {
			if failures > 0 {
				failures--
				return errBackend
			}
			return nil
		}
		ra := NewRetryingAdapter(fake, 3, time.Millisecond, nil)
		require.NoError(t, ra.Update(ctx, KindGroup, "g1", Group{ID: "g1"}))
		assert.Len(t, fake.calls, 3)
		assert.Same(t, Adapter(fake), ra.Unwrap())
	})

	t.Run("gives up", func(t *testing.T) {
		fake := newFakeAdapter()
		fake.fail = func(string, Kind, string) error { return errBackend }
		ra := NewRetryingAdapter(fake, 2, time.Millisecond, nil)
		err := ra.Delete(ctx, KindGroup, "g1")
		assert.ErrorIs(t, err, errBackend)
		assert.Contains(t, err.Error(), "giving up after 2 attempts")
		assert.Len(t, fake.calls, 2)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		fake := newFakeAdapter()
		fake.fail = func(string, Kind, string) error { return errBackend }
		ra := NewRetryingAdapter(fake, 5, time.Hour, nil)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := ra.Create(cctx, KindGroup, Group{ID: "g1"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, fake.calls, 1)
	})

	t.Run("load without loader", func(t *testing.T) {
		ra := NewRetryingAdapter(newFakeAdapter(), 1, 0, nil)
		snap, err := ra.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, snap.Groups)
	})
}
