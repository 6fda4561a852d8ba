package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/pkg/models"
)

func TestStaticTierResolver_CLIAlwaysOwner(t *testing.T) {
	r := NewStaticTierResolver(nil, nil)
	require.Equal(t, models.TierOwner, r.Resolve("cli", "anyone"))
}

func TestStaticTierResolver_ConfiguredTiers(t *testing.T) {
	r := NewStaticTierResolver(
		[]UserRef{{Channel: "slack", UserID: "U1"}},
		[]UserRef{{Channel: "slack", UserID: "U2"}},
	)
	require.Equal(t, models.TierOwner, r.Resolve("slack", "U1"))
	require.Equal(t, models.TierTrusted, r.Resolve("slack", "U2"))
	require.Equal(t, models.TierPublic, r.Resolve("slack", "U3"))
}

func TestRouter_ConnectIsIdempotent(t *testing.T) {
	stores := storage.NewMemoryStoreSet()
	router := NewRouter(stores.Sessions, NewStaticTierResolver(nil, nil), 20)

	s1, err := router.Connect(context.Background(), "cli", "owner")
	require.NoError(t, err)
	s2, err := router.Connect(context.Background(), "cli", "owner")
	require.NoError(t, err)
	require.Equal(t, s1.SessionID, s2.SessionID)
}

func TestBroadcastScope_Matches(t *testing.T) {
	sess := &models.Session{SessionID: "s1", Channel: "slack"}
	require.True(t, (BroadcastScope{All: true}).Matches(sess))
	require.True(t, (BroadcastScope{SessionID: "s1"}).Matches(sess))
	require.False(t, (BroadcastScope{SessionID: "s2"}).Matches(sess))
	require.True(t, (BroadcastScope{Channel: "slack"}).Matches(sess))
	require.False(t, BroadcastScope{}.Matches(sess))
}
