package protocol

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Answer-webhook markup. The telephony platform fetches this document
// when the callee picks up; the Stream element tells it to open the
// bidirectional media socket.

type streamElement struct {
	XMLName       xml.Name `xml:"Stream"`
	Bidirectional bool     `xml:"bidirectional,attr"`
	KeepCallAlive bool     `xml:"keepCallAlive,attr"`
	AudioTrack    string   `xml:"audioTrack,attr"`
	ContentType   string   `xml:"contentType,attr"`
	URL           string   `xml:",chardata"`
}

type speakElement struct {
	XMLName xml.Name `xml:"Speak"`
	Text    string   `xml:",chardata"`
}

type responseDoc struct {
	XMLName xml.Name `xml:"Response"`
	Stream  *streamElement
	Speak   *speakElement
}

func renderXML(doc responseDoc) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")
	// Marshalling a static struct cannot fail; keep the signature simple.
	_ = enc.Encode(doc)
	_ = enc.Close()
	buf.WriteByte('\n')
	return buf.Bytes()
}

// AnswerXML directs the platform to open the media stream at wsURL.
func AnswerXML(wsURL string, sampleRate int) []byte {
	return renderXML(responseDoc{
		Stream: &streamElement{
			Bidirectional: true,
			KeepCallAlive: true,
			AudioTrack:    "inbound",
			ContentType:   fmt.Sprintf("%s;rate=%d", ContentTypePCM, sampleRate),
			URL:           wsURL,
		},
	})
}

// ErrorXML announces a spoken error instead of failing the call.
func ErrorXML(text string) []byte {
	return renderXML(responseDoc{Speak: &speakElement{Text: text}})
}
