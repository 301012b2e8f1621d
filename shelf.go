// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ggatlas

// shelfPacker packs rectangles into horizontal shelves inside a square.
//
// Each shelf is as tall as the tallest item placed on it. An item goes to
// the fitting shelf that wastes the least height. Only the last shelf may
// grow taller, since growing any other shelf would run into the one below.
// Padding is reserved to the right of and below every item.
type shelfPacker struct {
	side     int
	padding  int
	shelves  []packShelf
	usedArea int
}

type packShelf struct {
	y      int
	height int // includes padding
	x      int // next free column
}

func newShelfPacker(side, padding int) *shelfPacker {
	return &shelfPacker{
		side:    side,
		padding: padding,
		shelves: make([]packShelf, 0, 16),
	}
}

// allocate reserves a w x h rectangle and returns its position.
func (p *shelfPacker) allocate(w, h int) (Rect, bool) {
	if w <= 0 || h <= 0 {
		return Rect{}, false
	}
	pw, ph := w+p.padding, h+p.padding
	if pw > p.side+p.padding || ph > p.side+p.padding {
		return Rect{}, false
	}

	best := -1
	bestWaste := 0
	for i := range p.shelves {
		s := &p.shelves[i]
		if s.x+w > p.side {
			continue
		}
		last := i == len(p.shelves)-1
		switch {
		case ph <= s.height:
			if waste := s.height - ph; best < 0 || waste < bestWaste {
				best, bestWaste = i, waste
			}
		case last && s.y+h <= p.side:
			// Growing the last shelf wastes nothing on it.
			if best < 0 || bestWaste > 0 {
				best, bestWaste = i, 0
			}
		}
	}

	if best >= 0 {
		s := &p.shelves[best]
		r := Rect{X: s.x, Y: s.y, W: w, H: h}
		s.x += pw
		if ph > s.height {
			s.height = ph
		}
		p.usedArea += w * h
		return r, true
	}

	y := 0
	if n := len(p.shelves); n > 0 {
		y = p.shelves[n-1].y + p.shelves[n-1].height
	}
	if y+h > p.side {
		return Rect{}, false
	}
	p.shelves = append(p.shelves, packShelf{y: y, height: ph, x: pw})
	p.usedArea += w * h
	return Rect{X: 0, Y: y, W: w, H: h}, true
}

func (p *shelfPacker) reset(side int) {
	p.side = side
	p.shelves = p.shelves[:0]
	p.usedArea = 0
}

// utilization returns the fraction of the square covered by items.
func (p *shelfPacker) utilization() float64 {
	if p.side <= 0 {
		return 0
	}
	return float64(p.usedArea) / float64(p.side*p.side)
}
