package competitor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivaldex/rivaldex/internal/profile"
)

func TestUpsertRejectsEmptyIdentifiers(t *testing.T) {
	// Validation happens before any query, so a nil db is safe here.
	s := NewStore(nil)
	snap := &profile.Snapshot{Username: "bob"}

	_, err := s.Upsert(context.Background(), "", "bob", snap, "")
	require.Error(t, err)

	_, err = s.Upsert(context.Background(), "alice", "", snap, "")
	require.Error(t, err)

	_, err = s.Upsert(context.Background(), "alice", "bob", nil, "")
	require.Error(t, err)
}

func TestRecordJSONShape(t *testing.T) {
	rec := Record{
		ID:          "rec-1",
		Owner:       "alice",
		Username:    "bob",
		DisplayName: "Bob Example",
		ImageURL:    "https://img.test/avatars/ab/cd",
		Profile:     map[string]string{"follower_count": "1234"},
		CreatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		RefreshedAt: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "alice", out["owner"])
	assert.Equal(t, "bob", out["username"])
	assert.Equal(t, "Bob Example", out["display_name"])
	assert.Contains(t, out, "created_at")
	assert.Contains(t, out, "refreshed_at")
}

func TestRecordOmitsEmptyProfile(t *testing.T) {
	data, err := json.Marshal(Record{Owner: "alice", Username: "bob"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"profile"`)
}
