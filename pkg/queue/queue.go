package queue

import "github.com/fieldmesh/coapd/pkg/coap"

// Less orders two nodes for insertion: it reports whether lhs sorts before
// rhs. Ties are stable: Insert appends an equal-keyed node after existing
// equal-keyed entries (spec.md §4.B: "ties resolve to insert after").
type Less func(lhs, rhs *Node) bool

// TimeOrder is the comparator used by both the send queue (head = earliest
// scheduled retransmission) and the receive queue (head = earliest
// arrival): spec.md §4.B's time-order comparator.
func TimeOrder(lhs, rhs *Node) bool {
	return lhs.T.Before(rhs.T)
}

// IDOrder is the id-order comparator, used where entries need grouping by
// transaction id rather than by time. The source's _order_transaction_id
// compared "lhs->id < lhs->id" — a self-comparison typo (spec.md §9, open
// question); this implementation compares lhs.ID against rhs.ID as the
// spec's redesign note requires.
func IDOrder(lhs, rhs *Node) bool {
	return lhs.ID < rhs.ID
}

// Queue is a singly-linked, insertion-sorted collection of nodes. Build one
// with New: the zero value has no comparator, so inserting into a non-empty
// zero-value queue panics.
type Queue struct {
	head *Node
	less Less
}

// New builds a queue ordered by less. Both the send and receive queues use
// TimeOrder; tests that want to exercise id-ordering pass IDOrder.
func New(less Less) *Queue {
	return &Queue{less: less}
}

// Len reports the number of nodes currently queued. O(n); intended for
// tests and metrics, not the hot dispatch path.
func (q *Queue) Len() int {
	n := 0
	for cur := q.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Empty reports whether the queue holds no nodes.
func (q *Queue) Empty() bool { return q.head == nil }

// Insert walks from the head and inserts node before the first entry it
// sorts before, preserving the queue's ordering invariant. Ties append
// after existing equal-keyed entries.
func (q *Queue) Insert(node *Node) {
	node.next = nil

	if q.head == nil || q.less(node, q.head) {
		node.next = q.head
		q.head = node
		return
	}

	prev := q.head
	cur := q.head.next
	for cur != nil && !q.less(node, cur) {
		prev = cur
		cur = cur.next
	}
	node.next = cur
	prev.next = node
}

// PeekNext returns the head node without removing it, or nil if empty.
func (q *Queue) PeekNext() *Node {
	return q.head
}

// PopNext removes and returns the head node, or nil if empty.
func (q *Queue) PopNext() *Node {
	if q.head == nil {
		return nil
	}
	n := q.head
	q.head = q.head.next
	n.next = nil
	return n
}

// RemoveByID detaches the first node whose ID matches id and returns it
// (with its next pointer cleared), or nil if no match is found. Only the
// first occurrence is removed, matching spec.md §4.B / invariant 5.
func (q *Queue) RemoveByID(id coap.TID) *Node {
	if q.head == nil {
		return nil
	}
	if q.head.ID == id {
		n := q.head
		q.head = q.head.next
		n.next = nil
		return n
	}
	prev := q.head
	cur := q.head.next
	for cur != nil {
		if cur.ID == id {
			prev.next = cur.next
			cur.next = nil
			return cur
		}
		prev = cur
		cur = cur.next
	}
	return nil
}

// Find returns the first node with the given id without removing it, or
// nil if none match.
func (q *Queue) Find(id coap.TID) *Node {
	for cur := q.head; cur != nil; cur = cur.next {
		if cur.ID == id {
			return cur
		}
	}
	return nil
}

// DeleteAll drops every node (and, transitively, the PDU each owns).
func (q *Queue) DeleteAll() {
	q.head = nil
}
