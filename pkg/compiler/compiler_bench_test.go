package compiler

import "testing"

const simpleSource = `
int main() {
	return 6 * 7;
}
`

const callSource = `
int main() {
	return square() - cube() / 3 + offset();
}

int square() { return base() * base(); }
int cube() { return base() * base() * base(); }
int base() { return 9; }
int offset() { return -(1 + 2) * 4; }
int unused() { return 0; }
`

func BenchmarkCompile_Simple(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := Compile(simpleSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompile_Calls(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := Compile(callSource); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLex(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Lex(callSource); err != nil {
			b.Fatal(err)
		}
	}
}
