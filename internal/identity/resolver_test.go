package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coalesce-dev/coalesce/pkg/types"
)

func clusterIDs(cluster []*types.Contact) []int64 {
	ids := make([]int64, len(cluster))
	for i, c := range cluster {
		ids[i] = c.ID
	}
	return ids
}

func TestResolveClusterSingleton(t *testing.T) {
	store := newMemStore()
	p := store.seed("a@x.com", "", nil, types.LinkPrecedencePrimary)

	cluster, err := resolveCluster(context.Background(), store, []*types.Contact{p})
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID}, clusterIDs(cluster))
}

func TestResolveClusterFromSecondarySeed(t *testing.T) {
	store := newMemStore()
	p := store.seed("a@x.com", "", nil, types.LinkPrecedencePrimary)
	s1 := store.seed("b@x.com", "", &p.ID, types.LinkPrecedenceSecondary)
	s2 := store.seed("", "111", &p.ID, types.LinkPrecedenceSecondary)

	// Seeding from one secondary must pull in the parent and its other
	// children.
	cluster, err := resolveCluster(context.Background(), store, []*types.Contact{s1})
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID, s1.ID, s2.ID}, clusterIDs(cluster))
}

func TestResolveClusterTransientChain(t *testing.T) {
	store := newMemStore()

	// A three-level chain violates the one-hop steady state but can exist
	// mid-merge; the traversal must still find the whole component.
	top := store.seed("top@x.com", "", nil, types.LinkPrecedencePrimary)
	mid := store.seed("mid@x.com", "", &top.ID, types.LinkPrecedenceSecondary)
	leaf := store.seed("leaf@x.com", "", &mid.ID, types.LinkPrecedenceSecondary)

	cluster, err := resolveCluster(context.Background(), store, []*types.Contact{leaf})
	require.NoError(t, err)
	assert.Equal(t, []int64{top.ID, mid.ID, leaf.ID}, clusterIDs(cluster))
}

func TestResolveClusterMultipleSeedComponents(t *testing.T) {
	store := newMemStore()

	x := store.seed("a@x.com", "", nil, types.LinkPrecedencePrimary)
	y := store.seed("", "555", nil, types.LinkPrecedencePrimary)
	yChild := store.seed("b@x.com", "555", &y.ID, types.LinkPrecedenceSecondary)

	// Seeds from two disjoint components resolve to their union.
	cluster, err := resolveCluster(context.Background(), store, []*types.Contact{x, yChild})
	require.NoError(t, err)
	assert.Equal(t, []int64{x.ID, y.ID, yChild.ID}, clusterIDs(cluster))
}

func TestResolveClusterOrderedByCreation(t *testing.T) {
	store := newMemStore()

	p := store.seed("a@x.com", "", nil, types.LinkPrecedencePrimary)
	s1 := store.seed("b@x.com", "", &p.ID, types.LinkPrecedenceSecondary)
	s2 := store.seed("c@x.com", "", &p.ID, types.LinkPrecedenceSecondary)

	// Seed order must not leak into result order.
	cluster, err := resolveCluster(context.Background(), store, []*types.Contact{s2, s1})
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID, s1.ID, s2.ID}, clusterIDs(cluster))
}
