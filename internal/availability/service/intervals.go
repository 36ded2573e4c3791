package service

import "sort"

// span is a half-open minute interval [start, end) within a display-zone day.
type span struct {
	start int
	end   int
}

// mergeSpans unions overlapping or touching intervals. Input is not mutated.
func mergeSpans(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sorted := make([]span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start < sorted[j].start
		}
		return sorted[i].end < sorted[j].end
	})

	merged := []span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// subtractSpans removes blocks from intervals. Blocks are merged first so
// overlapping breaks cut each interval at most once per region.
func subtractSpans(intervals, blocks []span) []span {
	if len(intervals) == 0 || len(blocks) == 0 {
		out := make([]span, len(intervals))
		copy(out, intervals)
		return out
	}
	blocks = mergeSpans(blocks)

	var out []span
	for _, iv := range intervals {
		segments := []span{iv}
		for _, b := range blocks {
			var next []span
			for _, seg := range segments {
				if b.end <= seg.start || seg.end <= b.start {
					next = append(next, seg)
					continue
				}
				if seg.start < b.start {
					next = append(next, span{seg.start, b.start})
				}
				if b.end < seg.end {
					next = append(next, span{b.end, seg.end})
				}
			}
			segments = next
			if len(segments) == 0 {
				break
			}
		}
		out = append(out, segments...)
	}
	return mergeSpans(out)
}

// splitSlots cuts intervals into fixed-size slots, dropping any trailing
// remainder shorter than one slot.
func splitSlots(intervals []span, slotMin int) []span {
	var slots []span
	for _, iv := range intervals {
		for t := iv.start; t+slotMin <= iv.end; t += slotMin {
			slots = append(slots, span{t, t + slotMin})
		}
	}
	return slots
}
