package signature

import "testing"

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want bool
	}{
		{name: "both empty", a: []byte{}, b: []byte{}, want: true},
		{name: "identical", a: []byte("digest"), b: []byte("digest"), want: true},
		{name: "first byte differs", a: []byte("xigest"), b: []byte("digest"), want: false},
		{name: "last byte differs", a: []byte("digesx"), b: []byte("digest"), want: false},
		{name: "shorter a", a: []byte("dig"), b: []byte("digest"), want: false},
		{name: "shorter b", a: []byte("digest"), b: []byte("dig"), want: false},
		{name: "nil vs empty", a: nil, b: []byte{}, want: true},
		{name: "nil vs data", a: nil, b: []byte{0}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestEqual_Reflexive(t *testing.T) {
	for i := 0; i < 64; i++ {
		a := make([]byte, i)
		for j := range a {
			a[j] = byte(i * j)
		}
		if !Equal(a, a) {
			t.Errorf("Equal(a, a) = false for len %d", i)
		}
	}
}
