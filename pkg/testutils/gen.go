package testutils

import "github.com/argus-labs/cardinal-extras/pkg/assert"

// Gen enumerates every combination of the choices a test makes, one combination per iteration:
//
//	for g := testutils.NewGen(); !g.Done(); {
//	    a, b := g.Bool(), g.Bool()
//	    ...
//	}
//
// Each call records a digit with its bound. Done advances the rightmost digit that can still grow
// and forgets every digit after it, so later choices may depend on earlier ones.
// See <https://matklad.github.io/2021/11/07/generate-all-the-things.html>.
type Gen struct {
	started bool
	digits  []genDigit
	pos     int
}

type genDigit struct {
	value, bound int
}

// NewGen returns a generator positioned before its first combination.
func NewGen() *Gen {
	return &Gen{}
}

// Done moves to the next combination. It returns true once every combination was produced.
func (g *Gen) Done() bool {
	if !g.started {
		g.started = true
		return false
	}
	for i := len(g.digits) - 1; i >= 0; i-- {
		if g.digits[i].value < g.digits[i].bound {
			g.digits[i].value++
			g.digits = g.digits[:i+1]
			g.pos = 0
			return false
		}
	}
	return true
}

// Intn returns a value in [0, bound].
func (g *Gen) Intn(bound int) int {
	assert.That(bound >= 0, "gen: negative bound")
	if g.pos == len(g.digits) {
		g.digits = append(g.digits, genDigit{})
	}
	d := &g.digits[g.pos]
	d.bound = bound
	g.pos++
	return d.value
}

// Bool returns false, then true.
func (g *Gen) Bool() bool {
	return g.Intn(1) == 1
}

// Pick returns one element of s.
func Pick[T any](g *Gen, s []T) T {
	assert.That(len(s) > 0, "gen: empty slice")
	return s[g.Intn(len(s)-1)]
}
