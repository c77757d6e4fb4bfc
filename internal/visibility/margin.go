package visibility

import (
	"fmt"
	"strconv"
	"strings"
)

// Length is a margin component in absolute units or as a percentage of the
// root's size along the same axis.
type Length struct {
	Value   float64
	Percent bool
}

func (l Length) resolve(size float64) float64 {
	if l.Percent {
		return size * l.Value / 100
	}
	return l.Value
}

// Margin grows (or, when negative, shrinks) the root before intersection is
// computed.
type Margin struct {
	Top, Right, Bottom, Left Length
}

// ParseMargin parses CSS margin shorthand: one to four lengths with a px or
// % suffix. Bare numbers are absolute units. The empty string is no margin.
func ParseMargin(s string) (Margin, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Margin{}, nil
	}
	if len(fields) > 4 {
		return Margin{}, fmt.Errorf("root margin %q: at most 4 values", s)
	}

	vals := make([]Length, len(fields))
	for i, f := range fields {
		l, err := parseLength(f)
		if err != nil {
			return Margin{}, fmt.Errorf("root margin %q: %w", s, err)
		}
		vals[i] = l
	}

	switch len(vals) {
	case 1:
		return Margin{vals[0], vals[0], vals[0], vals[0]}, nil
	case 2:
		return Margin{vals[0], vals[1], vals[0], vals[1]}, nil
	case 3:
		return Margin{vals[0], vals[1], vals[2], vals[1]}, nil
	default:
		return Margin{vals[0], vals[1], vals[2], vals[3]}, nil
	}
}

func parseLength(s string) (Length, error) {
	var l Length
	num := s
	switch {
	case strings.HasSuffix(s, "px"):
		num = strings.TrimSuffix(s, "px")
	case strings.HasSuffix(s, "%"):
		num = strings.TrimSuffix(s, "%")
		l.Percent = true
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Length{}, fmt.Errorf("invalid length %q", s)
	}
	l.Value = v
	return l, nil
}

// Expand applies m to root.
func (m Margin) Expand(root Rect) Rect {
	top := m.Top.resolve(root.H)
	bottom := m.Bottom.resolve(root.H)
	left := m.Left.resolve(root.W)
	right := m.Right.resolve(root.W)
	return Rect{
		X: root.X - left,
		Y: root.Y - top,
		W: root.W + left + right,
		H: root.H + top + bottom,
	}
}
