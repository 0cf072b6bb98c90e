package questions

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
)

// Entry is one question to put to the players. Drawn selects a drawing
// canvas instead of free text for the answer.
type Entry struct {
	Question string `json:"question"`
	Drawn    bool   `json:"drawn"`
	Mature   bool   `json:"mature,omitempty"`
}

// Supply yields an ordered, non-repeating sequence of questions. TryTake
// returns false once the supply is exhausted; an exhausted supply never
// yields again.
type Supply interface {
	TryTake() (Entry, bool)
}

// Queue is a fixed in-memory Supply.
type Queue struct {
	entries []Entry
}

func NewQueue(entries []Entry) *Queue {
	return &Queue{entries: entries}
}

func (q *Queue) TryTake() (Entry, bool) {
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	e := q.entries[0]
	q.entries = q.entries[1:]
	return e, true
}

func (q *Queue) Remaining() int { return len(q.entries) }

const drawPerGame = 20

type fileList struct {
	Questions []Entry `json:"questions"`
}

// LoadFile reads a question list from a JSON file, shuffles it and keeps
// at most 20 entries for the game. Mature entries are filtered out unless
// allowMature is set.
func LoadFile(path string, allowMature bool, rng *rand.Rand) (*Queue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question list: %w", err)
	}

	var list fileList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse question list %s: %w", path, err)
	}

	entries := make([]Entry, 0, len(list.Questions))
	for _, e := range list.Questions {
		if e.Question == "" {
			continue
		}
		if e.Mature && !allowMature {
			continue
		}
		entries = append(entries, e)
	}

	rng.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})
	if len(entries) > drawPerGame {
		entries = entries[:drawPerGame]
	}
	return NewQueue(entries), nil
}
