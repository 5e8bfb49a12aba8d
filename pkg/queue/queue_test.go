package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldmesh/coapd/pkg/coap"
	"github.com/fieldmesh/coapd/pkg/queue"
)

func nodeAt(t time.Time, id coap.TID) *queue.Node {
	return &queue.Node{T: t, ID: id}
}

func TestQueue_Insert_MaintainsTimeOrder(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	q := queue.New(queue.TimeOrder)
	q.Insert(nodeAt(base.Add(3*time.Second), 3))
	q.Insert(nodeAt(base.Add(1*time.Second), 1))
	q.Insert(nodeAt(base.Add(2*time.Second), 2))

	var ids []coap.TID
	for n := q.PeekNext(); n != nil; n = n.Next() {
		ids = append(ids, n.ID)
	}
	require.Equal(t, []coap.TID{1, 2, 3}, ids)
}

func TestQueue_Insert_TiesAppendAfterExisting(t *testing.T) {
	t.Parallel()

	same := time.Unix(0, 0)
	q := queue.New(queue.TimeOrder)
	q.Insert(nodeAt(same, 1))
	q.Insert(nodeAt(same, 2))
	q.Insert(nodeAt(same, 3))

	require.Equal(t, coap.TID(1), q.PeekNext().ID)
	require.Equal(t, coap.TID(2), q.PeekNext().Next().ID)
	require.Equal(t, coap.TID(3), q.PeekNext().Next().Next().ID)
}

func TestQueue_PopNext_EmptyReturnsNil(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.TimeOrder)
	require.Nil(t, q.PopNext())
	require.True(t, q.Empty())
}

func TestQueue_RemoveByID_OnlyFirstOccurrence(t *testing.T) {
	t.Parallel()

	base := time.Unix(0, 0)
	q := queue.New(queue.TimeOrder)
	q.Insert(nodeAt(base, 5))
	q.Insert(nodeAt(base.Add(time.Second), 5))

	removed := q.RemoveByID(5)
	require.NotNil(t, removed)
	require.Equal(t, 1, q.Len())
	require.NotNil(t, q.Find(5))
}

func TestQueue_RemoveByID_NoMatchReturnsNil(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.TimeOrder)
	q.Insert(nodeAt(time.Unix(0, 0), 1))
	require.Nil(t, q.RemoveByID(99))
	require.Equal(t, 1, q.Len())
}

func TestQueue_DeleteAll_EmptiesQueue(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.TimeOrder)
	q.Insert(nodeAt(time.Unix(0, 0), 1))
	q.Insert(nodeAt(time.Unix(0, 0), 2))
	q.DeleteAll()
	require.True(t, q.Empty())
	require.Equal(t, 0, q.Len())
}

func TestIDOrder_ComparesIDsNotSelf(t *testing.T) {
	t.Parallel()

	lhs := &queue.Node{ID: 1}
	rhs := &queue.Node{ID: 2}
	require.True(t, queue.IDOrder(lhs, rhs))
	require.False(t, queue.IDOrder(rhs, lhs))
	require.False(t, queue.IDOrder(lhs, lhs))
}
