package repository

import "math/rand/v2"

// bestTree is a treap of per-player best scores with subtree sizes, ordered
// by score DESC then player id ASC. In-order traversal yields the
// leaderboard; sizes give O(log n) counts of players above a score.

type node struct {
	player string
	score  int64
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// before reports whether (aScore, aID) ranks ahead of (bScore, bID).
func before(aScore int64, aID string, bScore int64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, player string, score int64, prio uint64) *node {
	if n == nil {
		return &node{player: player, score: score, prio: prio, size: 1}
	}
	if before(score, player, n.score, n.player) {
		n.left = insert(n.left, player, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, player, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, player string, score int64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && player == n.player:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, player, score)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, player, score)
		}
	case before(score, player, n.score, n.player):
		n.left = remove(n.left, player, score)
	default:
		n.right = remove(n.right, player, score)
	}
	fix(n)
	return n
}

// collectTop appends up to limit player ids in leaderboard order.
func collectTop(n *node, limit int, out *[]string) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTop(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.player)
	}
	if len(*out) < limit {
		collectTop(n.right, limit, out)
	}
}

// countAbove counts nodes whose score is strictly greater than score.
func countAbove(n *node, score int64) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

type bestTree struct {
	root *node
}

func (t *bestTree) upsert(player string, oldScore int64, hadOld bool, newScore int64) {
	if hadOld {
		t.root = remove(t.root, player, oldScore)
	}
	t.root = insert(t.root, player, newScore, rand.Uint64())
}

func (t *bestTree) delete(player string, score int64) {
	t.root = remove(t.root, player, score)
}

func (t *bestTree) top(limit int) []string {
	if limit <= 0 {
		return nil
	}
	out := make([]string, 0, min(limit, nsize(t.root)))
	collectTop(t.root, limit, &out)
	return out
}

func (t *bestTree) above(score int64) int { return countAbove(t.root, score) }

func (t *bestTree) count() int { return nsize(t.root) }
