package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when Topics.Prefix is empty.
const DefaultTopicPrefix = "lucid"

// Topics builds the LUCID topic tree under Prefix:
//
//	<prefix>/status                   retained online/offline status
//	<prefix>/<beamline>/overview      retained overview document
//	<prefix>/<beamline>/activate      activation requests from the GUI
//	<prefix>/<beamline>/activation    activation results
//	<prefix>/<beamline>/search        grid search queries
//	<prefix>/<beamline>/search/result grid search results
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// Status is the retained service status topic, also used for the LWT.
func (t Topics) Status() string {
	return t.prefix() + "/status"
}

// Overview is the retained overview topic for a beamline.
func (t Topics) Overview(beamline string) string {
	return fmt.Sprintf("%s/%s/overview", t.prefix(), beamline)
}

// Activate is the request topic for a beamline.
func (t Topics) Activate(beamline string) string {
	return fmt.Sprintf("%s/%s/activate", t.prefix(), beamline)
}

// Activation is the result topic for a beamline.
func (t Topics) Activation(beamline string) string {
	return fmt.Sprintf("%s/%s/activation", t.prefix(), beamline)
}

// AllActivate matches activation requests for every beamline.
func (t Topics) AllActivate() string {
	return t.prefix() + "/+/activate"
}

// Search is the grid search query topic for a beamline.
func (t Topics) Search(beamline string) string {
	return fmt.Sprintf("%s/%s/search", t.prefix(), beamline)
}

// SearchResult is the grid search result topic for a beamline.
func (t Topics) SearchResult(beamline string) string {
	return t.Search(beamline) + "/result"
}

// AllSearch matches search queries for every beamline.
func (t Topics) AllSearch() string {
	return t.prefix() + "/+/search"
}

// BeamlineOf extracts the beamline segment from a per-beamline topic.
func (t Topics) BeamlineOf(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/")
	if !ok {
		return "", false
	}
	beamline, _, ok := strings.Cut(rest, "/")
	if !ok || beamline == "" {
		return "", false
	}
	return beamline, true
}
