package scheduler

import (
	"strings"

	"github.com/fyrsmithlabs/roadwatch/internal/feed"
)

// Key identifies a pollable remote collection.
type Key string

const (
	KeyIncidents       Key = "accidents"
	KeyLeaderboard     Key = "leaderboard"
	KeyUsers           Key = "admin/users"
	KeyPendingOfficers Key = "admin/pending-officers"

	commentsPrefix = "comments-"
)

// CommentsKey is the key of one incident's comment thread.
func CommentsKey(incidentID feed.ID) Key {
	return Key(commentsPrefix + string(incidentID))
}

// IncidentOf returns the incident id of a comment thread key.
func (k Key) IncidentOf() (feed.ID, bool) {
	id, ok := strings.CutPrefix(string(k), commentsPrefix)
	if !ok || id == "" {
		return "", false
	}
	return feed.ID(id), true
}

// Class groups keys for metric labels so per-incident keys do not explode
// cardinality.
func (k Key) Class() string {
	if _, ok := k.IncidentOf(); ok {
		return "comments"
	}
	return string(k)
}

func (k Key) String() string { return string(k) }
