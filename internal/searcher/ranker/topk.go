package ranker

import "container/heap"

// topK keeps the best limit documents in a min-heap instead of sorting
// every scored document.
func topK(scores Scores, limit int) []ScoredDoc {
	h := &scoredDocHeap{}
	heap.Init(h)
	for id, score := range scores {
		if score == 0 {
			continue
		}
		heap.Push(h, ScoredDoc{DocID: id, Score: score})
		if h.Len() > limit {
			heap.Pop(h)
		}
	}
	result := make([]ScoredDoc, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ScoredDoc)
	}
	return result
}

// scoredDocHeap is ordered worst-first so the root is evicted.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return before(h[j], h[i]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
