package guess

import "testing"

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Outcome
	}{
		{
			name: "no active round is passthrough",
			in:   Input{Text: "Gasolina", SenderID: "beto", DrawerID: "ana", SecretAnswer: "Gasolina", RoundActive: false},
			want: Passthrough,
		},
		{
			name: "drawer is blocked during active phase",
			in:   Input{Text: "hello", SenderID: "ana", DrawerID: "ana", SecretAnswer: "Gasolina", RoundActive: true},
			want: Blocked,
		},
		{
			name: "drawer is blocked even when typing the answer",
			in:   Input{Text: "Gasolina", SenderID: "ana", DrawerID: "ana", SecretAnswer: "Gasolina", RoundActive: true},
			want: Blocked,
		},
		{
			name: "wrong guess is a miss",
			in:   Input{Text: "Despacito", SenderID: "beto", DrawerID: "ana", SecretAnswer: "Gasolina", RoundActive: true},
			want: Miss,
		},
		{
			name: "case-insensitive match is a hit",
			in:   Input{Text: "gasolina", SenderID: "beto", DrawerID: "ana", SecretAnswer: "Gasolina", RoundActive: true},
			want: Hit,
		},
		{
			name: "surrounding whitespace is ignored",
			in:   Input{Text: "  Gasolina  ", SenderID: "beto", DrawerID: "ana", SecretAnswer: "Gasolina ", RoundActive: true},
			want: Hit,
		},
		{
			name: "repeat correct guess from a scored player is a miss",
			in:   Input{Text: "Gasolina", SenderID: "beto", DrawerID: "ana", SecretAnswer: "Gasolina", RoundActive: true, AlreadyScored: true},
			want: Miss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.in); got != tt.want {
				t.Fatalf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDrawerBonus(t *testing.T) {
	tests := []struct {
		delta, want int
	}{
		{22, 4},
		{21, 4},
		{30, 6},
		{4, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := DrawerBonus(tt.delta); got != tt.want {
			t.Errorf("DrawerBonus(%d) = %d, want %d", tt.delta, got, tt.want)
		}
	}
}
