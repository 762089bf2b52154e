package domain

import "time"

// PriceSnapshot consistent view of every tracked material after one state transition.
type PriceSnapshot struct {
	Timestamp  time.Time  `json:"ts"`
	Session    string     `json:"session"`
	SelectedID MaterialID `json:"selected_id"`
	Materials  []Material `json:"materials"`
}

// PriceSnapshotRecord bundles a snapshot with its journal index.
type PriceSnapshotRecord struct {
	Index    uint64
	Snapshot PriceSnapshot
}

// Selected returns the material chosen for analysis within this snapshot.
func (s PriceSnapshot) Selected() (Material, bool) {
	for _, m := range s.Materials {
		if m.ID == s.SelectedID {
			return m, true
		}
	}
	return Material{}, false
}
