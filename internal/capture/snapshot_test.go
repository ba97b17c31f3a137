package capture

import (
	"context"
	"testing"
)

func TestSnapshotRequiresURL(t *testing.T) {
	if _, err := Snapshot(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error without URL")
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/calendar"}
	if err := o.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Fatalf("defaults = %+v", o)
	}
}
