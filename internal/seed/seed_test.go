package seed

import (
	"testing"

	"github.com/robalobadob/vault/internal/vault"
)

func TestDeriveDeterministic(t *testing.T) {
	if Derive("salt", "demo") != Derive("salt", "demo") {
		t.Fatal("Derive is not deterministic")
	}
	if Derive("salt", "demo") == Derive("other", "demo") {
		t.Fatal("salt does not affect the seed")
	}
	if Derive("salt", "demo") == Derive("salt", "demo2") {
		t.Fatal("key does not affect the seed")
	}
}

func TestSourceReproducesSecrets(t *testing.T) {
	a := vault.New(Source("salt", "demo"))
	b := vault.New(Source("salt", "demo"))
	for i := 0; i < 5; i++ {
		if a.State().Secret != b.State().Secret {
			t.Fatalf("round %d: secrets differ: %v vs %v", i, a.State().Secret, b.State().Secret)
		}
		a.StartNewGame()
		b.StartNewGame()
	}
}
