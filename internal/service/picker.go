package service

import (
	"math/rand"
	"sync"
	"time"
)

// ReviewerPicker abstracts the random choice of reviewers so tests can
// substitute a deterministic source.
type ReviewerPicker interface {
	Pick(ids []string, limit int) []string
	PickOne(ids []string) (string, bool)
}

// RandomPicker shuffles candidates with a seeded generator and takes a prefix.
type RandomPicker struct {
	mu   sync.Mutex
	rand *rand.Rand
}

func NewRandomPicker() *RandomPicker {
	return &RandomPicker{rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Pick returns up to limit unique ids drawn uniformly without replacement.
// The input slice is not mutated.
func (p *RandomPicker) Pick(ids []string, limit int) []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limit <= 0 || len(ids) == 0 {
		return nil
	}

	copyIDs := append([]string(nil), ids...)
	p.rand.Shuffle(len(copyIDs), func(i, j int) {
		copyIDs[i], copyIDs[j] = copyIDs[j], copyIDs[i]
	})

	if len(copyIDs) > limit {
		copyIDs = copyIDs[:limit]
	}
	return copyIDs
}

func (p *RandomPicker) PickOne(ids []string) (string, bool) {
	picked := p.Pick(ids, 1)
	if len(picked) == 0 {
		return "", false
	}
	return picked[0], true
}
