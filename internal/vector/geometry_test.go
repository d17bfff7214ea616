/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func closePt(a, b Pt) bool { return math.Abs(a.X-b.X) < 1e-9 && math.Abs(a.Y-b.Y) < 1e-9 }

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
	if c := r.Center(); c != (Pt{60, 45}) {
		t.Fatalf("Center = %+v, want {60 45}", c)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
}

func TestRotateDegTurnsClockwiseOnScreen(t *testing.T) {
	p := RotateDeg(90).Apply(Pt{1, 0})
	if !closePt(p, Pt{0, 1}) {
		t.Fatalf("RotateDeg(90)·(1,0) = %+v, want (0,1)", p)
	}
}

func TestChainAppliesLastArgumentFirst(t *testing.T) {
	m := Chain(Translate(100, 0), Scale(2, 2))
	if p := m.Apply(Pt{1, 1}); !closePt(p, Pt{102, 2}) {
		t.Fatalf("Chain = %+v, want (102,2)", p)
	}
}

func TestInvert(t *testing.T) {
	m := Chain(Translate(3, -4), RotateDeg(33), Scale(2, 0.5))
	inv, ok := m.Invert()
	if !ok {
		t.Fatalf("Invert reported singular")
	}
	p := Pt{7, 11}
	if q := inv.Apply(m.Apply(p)); !closePt(q, p) {
		t.Fatalf("inv(m(p)) = %+v, want %+v", q, p)
	}
	if _, ok := Scale(0, 1).Invert(); ok {
		t.Fatalf("Invert of singular matrix reported ok")
	}
}

func TestRound(t *testing.T) {
	if v := Round(1.23456, 2); v != 1.23 {
		t.Fatalf("Round = %v, want 1.23", v)
	}
}
