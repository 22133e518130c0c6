package models

import (
	"testing"
	"time"
)

func TestArchivePathRoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 30, 0, 123, time.UTC)
	p := ArchivePath(Exercise, 42, at, OutcomeRejected)
	if p != "exercise/42/"+"1772443800000000123-rejected.txt" {
		t.Errorf("ArchivePath = %s", p)
	}
	meta, err := ParseArchivePath(p)
	if err != nil {
		t.Fatalf("ParseArchivePath: %v", err)
	}
	if meta.Domain != Exercise || meta.OwnerID != 42 || meta.Outcome != OutcomeRejected || !meta.CreatedAt.Equal(at) {
		t.Errorf("meta = %+v", meta)
	}
}

func TestParseArchivePath_Invalid(t *testing.T) {
	for _, p := range []string{
		"nutrition/1.txt",
		"sleep/1/10-rejected.txt",
		"nutrition/abc/10-rejected.txt",
		"nutrition/1/10-kept.txt",
		"nutrition/1/ten-accepted.txt",
		"nutrition/1/10-accepted.json",
	} {
		if _, err := ParseArchivePath(p); err == nil {
			t.Errorf("expected error for %q", p)
		}
	}
}
