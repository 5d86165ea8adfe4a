// Package animetitles fetches and indexes the Anime-Lists animetitles.xml
// dump, which carries AniDB's official, main, and synonym titles per
// anime id.
package animetitles

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
)

const defaultURL = "https://github.com/Anime-Lists/anime-lists/raw/master/animetitles.xml"

// TitleSet holds the known titles for one AniDB id.
type TitleSet struct {
	Main     string   `json:"main,omitempty"`
	Official []string `json:"official,omitempty"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Titles maps AniDB ids to their title sets. The map form is
// JSON-friendly so callers can cache the whole index.
type Titles map[int]TitleSet

// All returns every known title for aid, main title first.
func (t Titles) All(aid int) []string {
	set, ok := t[aid]
	if !ok {
		return nil
	}
	var out []string
	if set.Main != "" {
		out = append(out, set.Main)
	}
	out = append(out, set.Official...)
	out = append(out, set.Synonyms...)
	return out
}

// Main returns the main title for aid, or "".
func (t Titles) Main(aid int) string {
	return t[aid].Main
}

type document struct {
	XMLName xml.Name `xml:"animetitles"`
	Anime   []struct {
		Aid   string `xml:"aid,attr"`
		Title []struct {
			Text string `xml:",chardata"`
			Type string `xml:"type,attr"`
			Lang string `xml:"lang,attr"`
		} `xml:"title"`
	} `xml:"anime"`
}

// Parse decodes an animetitles.xml stream into a Titles index.
func Parse(r io.Reader) (Titles, error) {
	doc := &document{}
	if err := xml.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode XML")
	}

	titles := make(Titles, len(doc.Anime))
	for _, anime := range doc.Anime {
		aid, err := strconv.Atoi(anime.Aid)
		if err != nil {
			continue
		}
		set := TitleSet{}
		for _, title := range anime.Title {
			switch title.Type {
			case "main":
				set.Main = title.Text
			case "official":
				set.Official = append(set.Official, title.Text)
			case "syn":
				set.Synonyms = append(set.Synonyms, title.Text)
			}
		}
		titles[aid] = set
	}

	return titles, nil
}

// Fetch downloads and parses the full animetitles.xml dump. A nil client
// uses http.DefaultClient.
func Fetch(ctx context.Context, client *http.Client) (Titles, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, defaultURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch animetitles.xml")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	return Parse(resp.Body)
}
