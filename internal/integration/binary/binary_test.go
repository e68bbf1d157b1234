package binary

import (
	"errors"
	"testing"

	"github.com/farcloser/primordium/fault"
)

func TestRequireMissing(t *testing.T) {
	_, err := Require("cochlea-definitely-not-installed")
	if !errors.Is(err, fault.ErrMissingRequirements) {
		t.Fatalf("expected ErrMissingRequirements, got %v", err)
	}

	if _, found := Available("cochlea-definitely-not-installed"); found {
		t.Fatal("missing binary reported as available")
	}
}
