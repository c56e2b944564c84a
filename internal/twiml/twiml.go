package twiml

import (
	"bytes"
	"encoding/xml"
)

// Minimal TwiML response builder. It intentionally avoids any provider SDK
// dependency and only includes the verbs this application emits.

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type sayVerb struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

type playVerb struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type pauseVerb struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr"`
}

// Document accumulates verbs in order.
type Document struct {
	verbs []any
}

// New returns an empty document.
func New() *Document {
	return &Document{}
}

// Say appends a spoken sentence.
func (d *Document) Say(text string) *Document {
	d.verbs = append(d.verbs, sayVerb{Text: text})
	return d
}

// Play appends audio playback of the given URL.
func (d *Document) Play(url string) *Document {
	d.verbs = append(d.verbs, playVerb{URL: url})
	return d
}

// Pause appends a silence of the given length in seconds.
func (d *Document) Pause(seconds int) *Document {
	d.verbs = append(d.verbs, pauseVerb{Length: seconds})
	return d
}

// Len returns the number of verbs in the document.
func (d *Document) Len() int { return len(d.verbs) }

// Render serializes the document to XML.
func (d *Document) Render() (string, error) {
	r := response{Verbs: d.verbs}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
