package fleet

import "time"

// DefaultVolume is the volume recorded when a status report omits it.
const DefaultVolume = 50

// MergeStatus builds a full Status from a partial device report.
//
// Defaulting rules (kept deliberately explicit so they are testable away
// from the transport layer):
//   - absent booleans  -> false
//   - absent volume    -> DefaultVolume
//   - absent times     -> 0
//   - absent strings   -> nil
//
// The UpdatedAt stamp is always set to now, even for an empty report: an
// empty report still means "the device spoke to us".
func MergeStatus(u StatusUpdate, now time.Time) Status {
	s := Status{
		Volume:    DefaultVolume,
		UpdatedAt: now,
	}

	if u.IsPlaying != nil {
		s.IsPlaying = *u.IsPlaying
	}
	if u.Volume != nil {
		s.Volume = *u.Volume
	}
	if u.CurrentTime != nil {
		s.CurrentTime = *u.CurrentTime
	}
	if u.Duration != nil {
		s.Duration = *u.Duration
	}
	s.TrackName = cloneStringPtr(u.TrackName)
	s.ArtistName = cloneStringPtr(u.ArtistName)
	s.AlbumImage = cloneStringPtr(u.AlbumImage)
	s.Genre = cloneStringPtr(u.Genre)
	s.Source = cloneStringPtr(u.Source)

	return s
}
