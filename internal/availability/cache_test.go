package availability

import (
	"testing"
	"time"
)

func TestCacheKey_NormalizesToUTCDate(t *testing.T) {
	// 2026-08-27 01:30 at UTC+10 is still 2026-08-26 in UTC, the date the
	// grid was cached under.
	loc := time.FixedZone("UTC+10", 10*60*60)
	local := time.Date(2026, 8, 27, 1, 30, 0, 0, loc)

	if got := cacheKey("sty-1", local); got != "slots:sty-1:2026-08-26" {
		t.Fatalf("cacheKey = %q, want slots:sty-1:2026-08-26", got)
	}
	if cacheKey("sty-1", local) != cacheKey("sty-1", local.UTC()) {
		t.Fatal("local and UTC timestamps on the same instant must share a key")
	}
}
