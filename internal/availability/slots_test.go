package availability

import (
	"testing"
	"time"

	"github.com/pawa-atelier/glowbook/internal/model"
)

func stylist(start, end string, daysOff ...time.Weekday) model.StylistProfile {
	return model.StylistProfile{
		ID:           "sty-1",
		WorkingHours: model.WorkingHours{Start: start, End: end},
		DaysOff:      daysOff,
	}
}

// 2026-08-26 is a Wednesday.
var day = time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)

func TestComputeSlots_FullWorkday(t *testing.T) {
	slots := AnnotateOccupancy(ComputeSlots(stylist("09:00", "18:00"), day, 30*time.Minute), nil)
	if len(slots) != 18 {
		t.Fatalf("expected 18 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(day.Add(9 * time.Hour)) {
		t.Fatalf("first slot starts %s, want 09:00", slots[0].Start.Format("15:04"))
	}
	last := slots[len(slots)-1]
	if !last.Start.Equal(day.Add(17*time.Hour + 30*time.Minute)) {
		t.Fatalf("last slot starts %s, want 17:30", last.Start.Format("15:04"))
	}
	if last.End.After(day.Add(18 * time.Hour)) {
		t.Fatalf("last slot end %s exceeds working hours end", last.End.Format("15:04"))
	}
	for _, s := range slots {
		if s.Occupied {
			t.Fatalf("slot %s should be free with no appointments", s.Start.Format("15:04"))
		}
	}
}

func TestComputeSlots_DayOff(t *testing.T) {
	st := stylist("09:00", "18:00", time.Wednesday)
	slots := AnnotateOccupancy(ComputeSlots(st, day, 30*time.Minute), nil)
	if len(slots) != 0 {
		t.Fatalf("expected no slots on a day off, got %d", len(slots))
	}
}

func TestComputeSlots_Restartable(t *testing.T) {
	grid := ComputeSlots(stylist("09:00", "10:00"), day, 30*time.Minute)
	first := 0
	for range grid {
		first++
	}
	second := 0
	for range grid {
		second++
	}
	if first != 2 || second != 2 {
		t.Fatalf("sequence not restartable: first pass %d, second pass %d", first, second)
	}
}

func TestComputeSlots_PeriodBuckets(t *testing.T) {
	slots := AnnotateOccupancy(ComputeSlots(stylist("09:00", "18:00"), day, 30*time.Minute), nil)
	counts := map[Period]int{}
	for _, s := range slots {
		counts[s.Period]++
	}
	// 09:00-11:30 morning, 12:00-16:30 afternoon, 17:00-17:30 evening.
	if counts[PeriodMorning] != 6 || counts[PeriodAfternoon] != 10 || counts[PeriodEvening] != 2 {
		t.Fatalf("period split = %v, want morning=6 afternoon=10 evening=2", counts)
	}
}

func TestComputeSlots_LastSlotFitsWindow(t *testing.T) {
	// 09:00-09:45 at 30m steps: only 09:00 fits, 09:30 would end at 10:00.
	slots := AnnotateOccupancy(ComputeSlots(stylist("09:00", "09:45"), day, 30*time.Minute), nil)
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
}

func TestIsSlotOccupied_GridWindows(t *testing.T) {
	existing := []model.Appointment{{
		StylistID: "sty-1",
		StartTime: day.Add(10 * time.Hour),
		EndTime:   day.Add(10*time.Hour + 45*time.Minute),
		Status:    model.StatusConfirmed,
	}}
	slots := AnnotateOccupancy(ComputeSlots(stylist("09:00", "18:00"), day, 30*time.Minute), existing)

	byStart := map[string]Slot{}
	for _, s := range slots {
		byStart[s.Start.Format("15:04")] = s
	}
	if !byStart["10:00"].Occupied {
		t.Fatal("slot 10:00 should be occupied")
	}
	if !byStart["10:30"].Occupied {
		t.Fatal("slot 10:30 should be occupied")
	}
	if byStart["09:30"].Occupied {
		t.Fatal("slot 09:30 should be free")
	}
	if byStart["11:00"].Occupied {
		t.Fatal("slot 11:00 should be free")
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	appt := model.Appointment{
		StartTime: day.Add(10 * time.Hour),
		EndTime:   day.Add(11 * time.Hour),
		Status:    model.StatusPending,
	}
	existing := []model.Appointment{appt}

	if Overlaps(day.Add(9*time.Hour), day.Add(10*time.Hour), existing) {
		t.Fatal("touching end should not overlap")
	}
	if Overlaps(day.Add(11*time.Hour), day.Add(12*time.Hour), existing) {
		t.Fatal("touching start should not overlap")
	}
	if !Overlaps(day.Add(10*time.Hour+30*time.Minute), day.Add(11*time.Hour+30*time.Minute), existing) {
		t.Fatal("straddling interval should overlap")
	}
}

func TestOverlaps_IgnoresNonBlocking(t *testing.T) {
	existing := []model.Appointment{
		{StartTime: day.Add(10 * time.Hour), EndTime: day.Add(11 * time.Hour), Status: model.StatusCancelled},
		{StartTime: day.Add(10 * time.Hour), EndTime: day.Add(11 * time.Hour), Status: model.StatusCompleted},
	}
	if Overlaps(day.Add(10*time.Hour), day.Add(11*time.Hour), existing) {
		t.Fatal("cancelled/completed appointments must not block")
	}
}

func TestPeriodOf(t *testing.T) {
	if p := PeriodOf(day.Add(11*time.Hour + 30*time.Minute)); p != PeriodMorning {
		t.Fatalf("11:30 = %s, want morning", p)
	}
	if p := PeriodOf(day.Add(12 * time.Hour)); p != PeriodAfternoon {
		t.Fatalf("12:00 = %s, want afternoon", p)
	}
	if p := PeriodOf(day.Add(16*time.Hour + 59*time.Minute)); p != PeriodAfternoon {
		t.Fatalf("16:59 = %s, want afternoon", p)
	}
	if p := PeriodOf(day.Add(17 * time.Hour)); p != PeriodEvening {
		t.Fatalf("17:00 = %s, want evening", p)
	}
}
