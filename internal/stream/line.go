package stream

import (
	"strings"

	"github.com/tidwall/gjson"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// LineKind classifies one line of the event stream.
type LineKind int

const (
	// KindNotData is any line without the "data: " prefix: comments,
	// keep-alives, event names and blank lines.
	KindNotData LineKind = iota
	// KindDone is the "data: [DONE]" terminal record.
	KindDone
	// KindMalformed is a data line whose payload is not a JSON object with a
	// choices list.
	KindMalformed
	// KindNoChoices is an envelope with an empty choices list.
	KindNoChoices
	// KindNoContent is an envelope whose first choice has no string delta content.
	KindNoContent
	// KindFragment carries content to append to the answer.
	KindFragment
)

func (k LineKind) String() string {
	switch k {
	case KindNotData:
		return "not_data"
	case KindDone:
		return "done"
	case KindMalformed:
		return "malformed"
	case KindNoChoices:
		return "no_choices"
	case KindNoContent:
		return "no_content"
	case KindFragment:
		return "fragment"
	}
	return "unknown"
}

// Line is the result of parsing one stream line. Content is set only for
// KindFragment and may be empty.
type Line struct {
	Kind    LineKind
	Content string
}

// ParseLine classifies a single line, without its trailing newline.
// Only KindFragment lines contribute to an answer; every other kind is
// expected on the wire and is skipped by the reducer.
func ParseLine(line string) Line {
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return Line{Kind: KindNotData}
	}
	if payload == doneSentinel {
		return Line{Kind: KindDone}
	}
	if !gjson.Valid(payload) {
		return Line{Kind: KindMalformed}
	}

	envelope := gjson.Parse(payload)
	if !envelope.IsObject() {
		return Line{Kind: KindMalformed}
	}
	choices := envelope.Get("choices")
	if !choices.IsArray() {
		return Line{Kind: KindMalformed}
	}

	first := choices.Get("0")
	if !first.Exists() {
		return Line{Kind: KindNoChoices}
	}
	content := first.Get("delta.content")
	if content.Type != gjson.String {
		return Line{Kind: KindNoContent}
	}
	return Line{Kind: KindFragment, Content: content.String()}
}
