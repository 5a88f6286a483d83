package lottery

import (
	"testing"

	"pgregory.net/rapid"

	"lottery-ledger/internal/model"
)

func digitString(n int) *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte('0' + rapid.IntRange(0, 9).Draw(t, "digit"))
		}
		return string(b)
	})
}

// A box bet wins against every ordering of the winning digits.
func TestBoxPermutationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		winning := digitString(3).Draw(t, "winning")
		d, err := ParseWinningNumber(winning)
		if err != nil {
			t.Fatalf("generated winning number %q rejected: %v", winning, err)
		}

		perm := rapid.Permutation([]byte(winning)).Draw(t, "perm")
		if !IsWinner(d, model.BetTypeTriple, "", string(perm), true) {
			t.Fatalf("box bet %q should win against %q", perm, winning)
		}
	})
}

// A box bet whose digit multiset differs from the draw never wins.
func TestBoxMultisetProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		winning := digitString(3).Draw(t, "winning")
		selected := digitString(3).Draw(t, "selected")
		d, _ := ParseWinningNumber(winning)

		want := sortDigits(winning) == sortDigits(selected)
		if got := IsWinner(d, model.BetTypeTriple, "", selected, true); got != want {
			t.Fatalf("box %q vs %q: got %v, want %v", selected, winning, got, want)
		}
	})
}

// An exact triple win implies a box win, and an exact triple win is only
// possible for the winning number itself.
func TestExactTripleImpliesBoxProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		winning := digitString(3).Draw(t, "winning")
		selected := digitString(3).Draw(t, "selected")
		d, _ := ParseWinningNumber(winning)

		exact := IsWinner(d, model.BetTypeTriple, "", selected, false)
		if exact != (selected == winning) {
			t.Fatalf("exact triple %q vs %q: got %v", selected, winning, exact)
		}
		if exact && !IsWinner(d, model.BetTypeTriple, "", selected, true) {
			t.Fatalf("exact winner %q must also win as box", selected)
		}
	})
}

// Exactly one digit wins at each single position, and exactly one pair at
// each double position.
func TestPositionalUniquenessProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		winning := digitString(3).Draw(t, "winning")
		d, _ := ParseWinningNumber(winning)

		for _, pos := range []string{PositionA, PositionB, PositionC} {
			wins := 0
			for digit := '0'; digit <= '9'; digit++ {
				if IsWinner(d, model.BetTypeSingle, pos, string(digit), false) {
					wins++
				}
			}
			if wins != 1 {
				t.Fatalf("position %s of %q: %d winning digits", pos, winning, wins)
			}
		}

		pos := rapid.SampledFrom([]string{PositionAB, PositionBC, PositionAC}).Draw(t, "pair")
		pair := digitString(2).Draw(t, "pair_digits")
		want, _ := d.Digits(pos)
		if got := IsWinner(d, model.BetTypeDouble, pos, pair, false); got != (pair == want) {
			t.Fatalf("double %s %q vs %q: got %v", pos, pair, winning, got)
		}
	})
}
