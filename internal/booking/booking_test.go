package booking

import (
	"testing"
	"time"
)

func ts(hour, min int) time.Time {
	return time.Date(2025, time.March, 10, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                           string
		aStart, aEnd, bStart, bEnd     time.Time
		want                           bool
	}{
		{"identical intervals", ts(10, 0), ts(11, 0), ts(10, 0), ts(11, 0), true},
		{"partial overlap", ts(10, 0), ts(11, 0), ts(10, 30), ts(11, 30), true},
		{"candidate inside existing", ts(10, 0), ts(12, 0), ts(10, 30), ts(11, 0), true},
		{"existing inside candidate", ts(10, 30), ts(11, 0), ts(10, 0), ts(12, 0), true},
		{"touching boundary end-to-start", ts(10, 0), ts(11, 0), ts(11, 0), ts(12, 0), false},
		{"touching boundary start-to-end", ts(11, 0), ts(12, 0), ts(10, 0), ts(11, 0), false},
		{"disjoint", ts(8, 0), ts(9, 0), ts(10, 0), ts(11, 0), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFindConflicts(t *testing.T) {
	existing := []Interval{
		{ReservationID: "res-a", RoomID: "room-1", Start: ts(10, 0), End: ts(11, 0)},
		{ReservationID: "res-b", RoomID: "room-1", Start: ts(11, 0), End: ts(12, 0)},
		{ReservationID: "res-c", RoomID: "room-2", Start: ts(10, 0), End: ts(11, 0)},
	}

	t.Run("detects overlap in the same room", func(t *testing.T) {
		conflicts := FindConflicts(existing, Interval{RoomID: "room-1", Start: ts(10, 30), End: ts(11, 30)}, "")
		if len(conflicts) != 2 {
			t.Fatalf("expected 2 conflicts, got %d", len(conflicts))
		}
	})

	t.Run("ignores other rooms", func(t *testing.T) {
		conflicts := FindConflicts(existing, Interval{RoomID: "room-2", Start: ts(10, 30), End: ts(11, 30)}, "")
		if len(conflicts) != 1 || conflicts[0].ReservationID != "res-c" {
			t.Fatalf("expected only res-c, got %v", conflicts)
		}
	})

	t.Run("touching boundary is free", func(t *testing.T) {
		conflicts := FindConflicts(existing, Interval{RoomID: "room-1", Start: ts(12, 0), End: ts(13, 0)}, "")
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %v", conflicts)
		}
	})

	t.Run("excludes the reservation's own slot", func(t *testing.T) {
		conflicts := FindConflicts(existing, Interval{RoomID: "room-1", Start: ts(10, 0), End: ts(11, 0)}, "res-a")
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts when excluding res-a, got %v", conflicts)
		}
	})
}

func TestMissingAmenities(t *testing.T) {
	room := Amenities{DisplayProjector: true, VideoConferenceAvailable: false}

	t.Run("reports absent flags in request order", func(t *testing.T) {
		missing := MissingAmenities(room, []string{AmenityVideoConference, AmenityProjector, AmenityCatering})
		if len(missing) != 2 || missing[0] != AmenityVideoConference || missing[1] != AmenityCatering {
			t.Fatalf("unexpected missing set: %v", missing)
		}
	})

	t.Run("empty requirement always satisfied", func(t *testing.T) {
		if missing := MissingAmenities(Amenities{}, nil); missing != nil {
			t.Fatalf("expected nil, got %v", missing)
		}
	})

	t.Run("unknown names are never satisfied", func(t *testing.T) {
		missing := MissingAmenities(room, []string{"jacuzzi"})
		if len(missing) != 1 {
			t.Fatalf("expected unknown amenity to be missing, got %v", missing)
		}
	})
}

func TestOccupiedAt(t *testing.T) {
	confirmed := []Interval{{ReservationID: "res-a", RoomID: "room-1", Start: ts(10, 0), End: ts(11, 0)}}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before start", ts(9, 59), false},
		{"at start", ts(10, 0), true},
		{"mid interval", ts(10, 30), true},
		{"at end", ts(11, 0), true},
		{"after end", ts(11, 1), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OccupiedAt(confirmed, tc.at); got != tc.want {
				t.Fatalf("OccupiedAt(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}

	t.Run("no confirmed reservations means free", func(t *testing.T) {
		if OccupiedAt(nil, ts(10, 30)) {
			t.Fatal("expected free room")
		}
	})
}
