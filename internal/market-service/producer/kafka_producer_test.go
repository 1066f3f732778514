package producer

import (
	"testing"

	"github.com/radieske/bettable-market/pkg/contracts/events"
)

func TestStampKeepsExistingValues(t *testing.T) {
	e := events.MarketEvent{MarketID: 7, Type: events.TypeOddsSet}
	stamp(&e)
	if e.EventID == "" || e.TsUnixMs == 0 {
		t.Fatalf("expected id and timestamp, got %+v", e)
	}

	fixed := events.MarketEvent{EventID: "evt-1", TsUnixMs: 42}
	stamp(&fixed)
	if fixed.EventID != "evt-1" || fixed.TsUnixMs != 42 {
		t.Fatalf("stamp overwrote existing values: %+v", fixed)
	}
}
