package battle

import (
	"errors"
	"fmt"
	"strings"
)

// Size is the board dimension: fields are Size×Size.
const Size = 10

// Cell is a single board cell. Values match the wire encoding.
type Cell byte

const (
	CellEmpty Cell = '.'
	CellShip  Cell = 'S'
	CellHit   Cell = 'H'
	CellMiss  Cell = 'M'
)

// Grid is a raw Size×Size board, row-major. It is the exchange format
// between the protocol layer and Field.
type Grid [Size][Size]Cell

// EmptyGrid returns a grid with every cell set to CellEmpty.
func EmptyGrid() Grid {
	var g Grid
	for r := range Size {
		for c := range Size {
			g[r][c] = CellEmpty
		}
	}
	return g
}

// ParseGrid builds a Grid from Size strings of Size cells each.
func ParseGrid(rows []string) (Grid, error) {
	var g Grid
	if len(rows) != Size {
		return g, fmt.Errorf("parsing grid: want %d rows, got %d", Size, len(rows))
	}
	for r, row := range rows {
		if len(row) != Size {
			return g, fmt.Errorf("parsing grid: row %d has %d cells, want %d", r, len(row), Size)
		}
		for c := range Size {
			cell := Cell(row[c])
			switch cell {
			case CellEmpty, CellShip, CellHit, CellMiss:
				g[r][c] = cell
			default:
				return g, fmt.Errorf("parsing grid: invalid cell %q at (%d,%d)", row[c], r, c)
			}
		}
	}
	return g, nil
}

// Rows renders the grid as Size strings, one per row.
func (g Grid) Rows() []string {
	rows := make([]string, Size)
	var sb strings.Builder
	for r := range Size {
		sb.Reset()
		for c := range Size {
			sb.WriteByte(byte(g[r][c]))
		}
		rows[r] = sb.String()
	}
	return rows
}

// ShootState is the outcome of a single shot.
type ShootState uint8

const (
	ShootUnknown     ShootState = 0
	ShootHit         ShootState = 1
	ShootMiss        ShootState = 2
	ShootAlreadyShot ShootState = 3
)

func (s ShootState) String() string {
	switch s {
	case ShootHit:
		return "HIT"
	case ShootMiss:
		return "MISS"
	case ShootAlreadyShot:
		return "ALREADY_SHOT"
	default:
		return "UNKNOWN"
	}
}

// Orientation of a ship being placed.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

// ErrInvalidCoordinates reports a shot outside the board.
var ErrInvalidCoordinates = errors.New("coordinates out of range")

// Fleet returns the canonical ship multiset: one 4-deck, two 3-deck,
// three 2-deck and four 1-deck ships.
func Fleet() []int {
	return []int{4, 3, 3, 2, 2, 2, 1, 1, 1, 1}
}

// Field is one player's board. Not safe for concurrent use: a field is
// owned by exactly one session task.
type Field struct {
	grid Grid
}

// NewField returns an empty field.
func NewField() *Field {
	return &Field{grid: EmptyGrid()}
}

// NewFieldFromGrid wraps a prepared grid (e.g. a validated layout).
func NewFieldFromGrid(g Grid) *Field {
	return &Field{grid: g}
}

// Grid returns a copy of the current board state.
func (f *Field) Grid() Grid {
	return f.grid
}

// CanPlaceShip reports whether a ship of the given length fits at
// (row,col) with the given orientation: all cells on the board and empty,
// and no ship cell in the 8-neighborhood of any proposed cell (proposed
// cells themselves excluded).
func (f *Field) CanPlaceShip(length, row, col int, o Orientation) bool {
	if length < 1 {
		return false
	}

	cells := shipCells(length, row, col, o)
	for _, cell := range cells {
		if !inBounds(cell.row, cell.col) {
			return false
		}
		if f.grid[cell.row][cell.col] != CellEmpty {
			return false
		}
		for dr := -1; dr <= 1; dr++ {
			for dc := -1; dc <= 1; dc++ {
				nr, nc := cell.row+dr, cell.col+dc
				if !inBounds(nr, nc) || isProposed(cells, nr, nc) {
					continue
				}
				if f.grid[nr][nc] == CellShip {
					return false
				}
			}
		}
	}
	return true
}

// PlaceShip marks the ship cells. Precondition: CanPlaceShip holds.
func (f *Field) PlaceShip(length, row, col int, o Orientation) {
	for _, cell := range shipCells(length, row, col, o) {
		f.grid[cell.row][cell.col] = CellShip
	}
}

// Shoot resolves a shot at (row,col): a ship cell becomes a hit, an empty
// cell becomes a miss, an already resolved cell is reported as such and
// left untouched.
func (f *Field) Shoot(row, col int) (ShootState, error) {
	if !inBounds(row, col) {
		return ShootUnknown, fmt.Errorf("shooting (%d,%d): %w", row, col, ErrInvalidCoordinates)
	}

	switch f.grid[row][col] {
	case CellShip:
		f.grid[row][col] = CellHit
		return ShootHit, nil
	case CellEmpty:
		f.grid[row][col] = CellMiss
		return ShootMiss, nil
	case CellHit, CellMiss:
		return ShootAlreadyShot, nil
	default:
		return ShootUnknown, nil
	}
}

// MarkShot records a shot outcome on a tracking board (the attacker's
// view of the opponent). Only hits and misses are recorded.
func (f *Field) MarkShot(row, col int, state ShootState) {
	if !inBounds(row, col) {
		return
	}
	switch state {
	case ShootHit:
		f.grid[row][col] = CellHit
	case ShootMiss:
		f.grid[row][col] = CellMiss
	}
}

// AllShipsDestroyed reports whether no ship cell remains.
func (f *Field) AllShipsDestroyed() bool {
	for r := range Size {
		for c := range Size {
			if f.grid[r][c] == CellShip {
				return false
			}
		}
	}
	return true
}

type coord struct {
	row, col int
}

func shipCells(length, row, col int, o Orientation) []coord {
	cells := make([]coord, 0, length)
	for i := range length {
		if o == Horizontal {
			cells = append(cells, coord{row, col + i})
		} else {
			cells = append(cells, coord{row + i, col})
		}
	}
	return cells
}

func isProposed(cells []coord, row, col int) bool {
	for _, c := range cells {
		if c.row == row && c.col == col {
			return true
		}
	}
	return false
}

func inBounds(row, col int) bool {
	return row >= 0 && row < Size && col >= 0 && col < Size
}
