package polygonize

import (
	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// vertex is a contour point in (row, col) order.
type vertex [2]float64

type segment struct {
	from, to vertex
}

// Contours traces the iso-lines of field at level using marching squares.
//
// Each returned line string holds (x, y) = (col, row) vertices. Closed
// contours repeat their first vertex at the end; contours that run into the
// border of the field are left open. Cells strictly above level are inside.
// In ambiguous saddle cells the cells at or below level stay connected, so
// inside regions touching only at a corner produce separate contours.
//
// The output order is deterministic: contours are returned in the order in
// which their first segment was found during a row-major scan.
func Contours(field mat.Matrix, level float64) []orb.LineString {
	chains := assemble(segments(field, level))

	lines := make([]orb.LineString, 0, len(chains))
	for _, ch := range chains {
		pts := ch.points()
		ls := make(orb.LineString, len(pts))
		for i, p := range pts {
			ls[i] = orb.Point{p[1], p[0]}
		}
		lines = append(lines, ls)
	}
	return lines
}

// fraction returns where level crosses the edge between from and to.
func fraction(from, to, level float64) float64 {
	if to == from {
		return 0
	}
	return (level - from) / (to - from)
}

// segments emits the directed iso-line segments of every 2x2 cell in
// row-major order.
func segments(field mat.Matrix, level float64) []segment {
	rows, cols := field.Dims()
	if rows < 2 || cols < 2 {
		return nil
	}

	var out []segment
	for r := 0; r < rows-1; r++ {
		for c := 0; c < cols-1; c++ {
			ul := field.At(r, c)
			ur := field.At(r, c+1)
			ll := field.At(r+1, c)
			lr := field.At(r+1, c+1)

			square := 0
			if ul > level {
				square |= 1
			}
			if ur > level {
				square |= 2
			}
			if ll > level {
				square |= 4
			}
			if lr > level {
				square |= 8
			}
			if square == 0 || square == 15 {
				continue
			}

			fr, fc := float64(r), float64(c)
			top := vertex{fr, fc + fraction(ul, ur, level)}
			bottom := vertex{fr + 1, fc + fraction(ll, lr, level)}
			left := vertex{fr + fraction(ul, ll, level), fc}
			right := vertex{fr + fraction(ur, lr, level), fc + 1}

			switch square {
			case 1:
				out = append(out, segment{top, left})
			case 2:
				out = append(out, segment{right, top})
			case 3:
				out = append(out, segment{right, left})
			case 4:
				out = append(out, segment{left, bottom})
			case 5:
				out = append(out, segment{top, bottom})
			case 6:
				out = append(out, segment{right, top}, segment{left, bottom})
			case 7:
				out = append(out, segment{right, bottom})
			case 8:
				out = append(out, segment{bottom, right})
			case 9:
				out = append(out, segment{top, left}, segment{bottom, right})
			case 10:
				out = append(out, segment{bottom, top})
			case 11:
				out = append(out, segment{bottom, left})
			case 12:
				out = append(out, segment{left, right})
			case 13:
				out = append(out, segment{top, right})
			case 14:
				out = append(out, segment{left, top})
			}
		}
	}
	return out
}

// chain is a double-ended vertex list. front holds prepended vertices in
// reverse order.
type chain struct {
	id    int
	front []vertex
	back  []vertex
}

func (c *chain) first() vertex {
	if len(c.front) > 0 {
		return c.front[len(c.front)-1]
	}
	return c.back[0]
}

func (c *chain) last() vertex {
	if len(c.back) > 0 {
		return c.back[len(c.back)-1]
	}
	return c.front[0]
}

func (c *chain) prepend(v vertex) { c.front = append(c.front, v) }

func (c *chain) append(v vertex) { c.back = append(c.back, v) }

func (c *chain) points() []vertex {
	pts := make([]vertex, 0, len(c.front)+len(c.back))
	for i := len(c.front) - 1; i >= 0; i-- {
		pts = append(pts, c.front[i])
	}
	return append(pts, c.back...)
}

// assemble links directed segments end to start into chains. Chains are
// returned ordered by creation.
func assemble(segs []segment) []*chain {
	var (
		next   int
		live   = make(map[int]*chain)
		starts = make(map[vertex]*chain)
		ends   = make(map[vertex]*chain)
	)

	for _, s := range segs {
		if s.from == s.to {
			continue
		}

		tail, hasTail := starts[s.to]
		delete(starts, s.to)
		head, hasHead := ends[s.from]
		delete(ends, s.from)

		switch {
		case hasTail && hasHead:
			if tail == head {
				head.append(s.to)
				continue
			}
			if tail.id > head.id {
				head.back = append(head.back, tail.points()...)
				delete(live, tail.id)
				starts[head.first()] = head
				ends[head.last()] = head
			} else {
				hp := head.points()
				for i := len(hp) - 1; i >= 0; i-- {
					tail.prepend(hp[i])
				}
				delete(starts, hp[0])
				delete(live, head.id)
				starts[tail.first()] = tail
				ends[tail.last()] = tail
			}
		case !hasTail && !hasHead:
			ch := &chain{id: next, back: []vertex{s.from, s.to}}
			live[next] = ch
			starts[s.from] = ch
			ends[s.to] = ch
			next++
		case hasTail:
			tail.prepend(s.from)
			starts[s.from] = tail
		default:
			head.append(s.to)
			ends[s.to] = head
		}
	}

	out := make([]*chain, 0, len(live))
	for id := 0; id < next; id++ {
		if ch, ok := live[id]; ok {
			out = append(out, ch)
		}
	}
	return out
}
