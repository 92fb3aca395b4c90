package universe

import "testing"

func TestBuild_Default(t *testing.T) {
	got := Build("")
	if len(got) == 0 {
		t.Fatal("default watchlist must not be empty")
	}
	for _, sym := range got {
		if sym == "" {
			t.Error("empty symbol in default watchlist")
		}
	}
}

func TestBuild_Override(t *testing.T) {
	got := Build(" nvda, AMD ,NVDA,, tsla ")
	want := []string{"AMD", "NVDA", "TSLA"}

	if len(got) != len(want) {
		t.Fatalf("Build = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Build[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
