package battle

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidLayout is wrapped by every layout rejection; the wrapped
// message carries the human-readable reason sent back to the player.
var ErrInvalidLayout = errors.New("invalid layout")

// ValidateLayout checks a submitted board against the placement rules:
// only empty and ship cells, every ship a straight contiguous run, the
// ship sizes matching the canonical fleet, and no two ships touching,
// diagonals included. Ships are discovered as 4-connected components.
func ValidateLayout(g Grid) error {
	for r := range Size {
		for c := range Size {
			if g[r][c] != CellEmpty && g[r][c] != CellShip {
				return fmt.Errorf("%w: unexpected cell %q at (%d,%d)", ErrInvalidLayout, byte(g[r][c]), r, c)
			}
		}
	}

	var labels [Size][Size]int
	var sizes []int

	// Маркируем корабли поиском в ширину по 4-связности.
	next := 0
	for r := range Size {
		for c := range Size {
			if g[r][c] != CellShip || labels[r][c] != 0 {
				continue
			}
			next++
			size, err := labelComponent(g, &labels, r, c, next)
			if err != nil {
				return err
			}
			sizes = append(sizes, size)
		}
	}

	if err := checkFleet(sizes); err != nil {
		return err
	}

	// No ship cell may have an 8-neighbor belonging to another ship.
	for r := range Size {
		for c := range Size {
			if g[r][c] != CellShip {
				continue
			}
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					nr, nc := r+dr, c+dc
					if !inBounds(nr, nc) || (dr == 0 && dc == 0) {
						continue
					}
					if g[nr][nc] == CellShip && labels[nr][nc] != labels[r][c] {
						return fmt.Errorf("%w: ships touch near (%d,%d)", ErrInvalidLayout, r, c)
					}
				}
			}
		}
	}

	return nil
}

// labelComponent flood-fills one 4-connected ship starting at (row,col),
// verifies it is a straight gap-free run and returns its size.
func labelComponent(g Grid, labels *[Size][Size]int, row, col, label int) (int, error) {
	var cells []coord
	queue := []coord{{row, col}}
	labels[row][col] = label

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		cells = append(cells, cur)

		for _, d := range [4]coord{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := cur.row+d.row, cur.col+d.col
			if !inBounds(nr, nc) || g[nr][nc] != CellShip || labels[nr][nc] != 0 {
				continue
			}
			labels[nr][nc] = label
			queue = append(queue, coord{nr, nc})
		}
	}

	minR, maxR := cells[0].row, cells[0].row
	minC, maxC := cells[0].col, cells[0].col
	for _, c := range cells[1:] {
		minR, maxR = min(minR, c.row), max(maxR, c.row)
		minC, maxC = min(minC, c.col), max(maxC, c.col)
	}

	horizontal := minR == maxR
	vertical := minC == maxC
	if !horizontal && !vertical {
		return 0, fmt.Errorf("%w: ship at (%d,%d) is not a straight line", ErrInvalidLayout, row, col)
	}

	span := max(maxR-minR, maxC-minC) + 1
	if span != len(cells) {
		return 0, fmt.Errorf("%w: ship at (%d,%d) has gaps", ErrInvalidLayout, row, col)
	}

	return len(cells), nil
}

func checkFleet(sizes []int) error {
	want := Fleet()
	if len(sizes) != len(want) {
		return fmt.Errorf("%w: %d ships placed, want %d", ErrInvalidLayout, len(sizes), len(want))
	}

	got := append([]int(nil), sizes...)
	sort.Sort(sort.Reverse(sort.IntSlice(got)))
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: ship sizes %v do not match fleet %v", ErrInvalidLayout, got, want)
		}
	}
	return nil
}
