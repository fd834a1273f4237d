package types

import (
	"context"
	"testing"
)

func TestJobIDContext(t *testing.T) {
	if _, ok := JobIDFromContext(context.Background()); ok {
		t.Fatal("JobIDFromContext() on empty context reported ok")
	}
	ctx := WithJobID(context.Background(), "abc")
	id, ok := JobIDFromContext(ctx)
	if !ok || id != "abc" {
		t.Fatalf("JobIDFromContext() = %q, %v", id, ok)
	}
}
