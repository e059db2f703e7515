package booking

import "time"

// Interval is the time slot claimed by a reservation, half-open as
// [Start, End). Cancelled reservations must not be passed to the
// conflict helpers; they never block a slot.
type Interval struct {
	ReservationID string
	RoomID        string
	Start         time.Time
	End           time.Time
}

// Amenities holds the capability flags a room advertises.
type Amenities struct {
	DisplayProjector         bool
	DisplayWhiteboard        bool
	CateringAvailable        bool
	VideoConferenceAvailable bool
}

// Amenity names accepted in a reservation's required set.
const (
	AmenityProjector       = "displayProjector"
	AmenityWhiteboard      = "displayWhiteboard"
	AmenityCatering        = "cateringAvailable"
	AmenityVideoConference = "videoConferenceAvailable"
)

// KnownAmenity reports whether name is one of the supported amenity flags.
func KnownAmenity(name string) bool {
	switch name {
	case AmenityProjector, AmenityWhiteboard, AmenityCatering, AmenityVideoConference:
		return true
	}
	return false
}

// Overlaps applies the half-open interval intersection test:
// aStart < bEnd AND aEnd > bStart. Touching boundaries do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindConflicts returns the existing intervals that intersect the candidate.
// An interval whose ReservationID equals excludeID is skipped so a
// reservation being rescheduled does not conflict with its own slot.
func FindConflicts(existing []Interval, candidate Interval, excludeID string) []Interval {
	var conflicts []Interval
	for _, slot := range existing {
		if excludeID != "" && slot.ReservationID == excludeID {
			continue
		}
		if candidate.RoomID != "" && slot.RoomID != "" && slot.RoomID != candidate.RoomID {
			continue
		}
		if Overlaps(slot.Start, slot.End, candidate.Start, candidate.End) {
			conflicts = append(conflicts, slot)
		}
	}
	return conflicts
}

// MissingAmenities returns the required amenity names the room does not
// provide, preserving the order of the required slice.
func MissingAmenities(room Amenities, required []string) []string {
	var missing []string
	for _, name := range required {
		if !hasAmenity(room, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func hasAmenity(room Amenities, name string) bool {
	switch name {
	case AmenityProjector:
		return room.DisplayProjector
	case AmenityWhiteboard:
		return room.DisplayWhiteboard
	case AmenityCatering:
		return room.CateringAvailable
	case AmenityVideoConference:
		return room.VideoConferenceAvailable
	}
	return false
}

// OccupiedAt reports whether any of the confirmed intervals covers the
// instant t. Occupancy uses a closed range: a room is occupied from the
// reservation's start through its end inclusive.
func OccupiedAt(confirmed []Interval, t time.Time) bool {
	for _, slot := range confirmed {
		if !slot.Start.After(t) && !slot.End.Before(t) {
			return true
		}
	}
	return false
}
