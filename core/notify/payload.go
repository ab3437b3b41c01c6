package notify

import "encoding/json"

const defaultCardTitle = "Quiz Master Notification"

type (
	// Payload is either plain text or, when Card is set, a structured card.
	Payload struct {
		Text string
		Card *Card
	}

	Card struct {
		Title    string
		Sections []Section
	}

	Section struct {
		Header  string   `json:"header,omitempty"`
		Widgets []Widget `json:"widgets"`
	}

	Widget struct {
		TextParagraph *TextParagraph `json:"textParagraph,omitempty"`
		Buttons       []Button       `json:"buttons,omitempty"`
	}

	TextParagraph struct {
		Text string `json:"text"`
	}

	Button struct {
		TextButton TextButton `json:"textButton"`
	}

	TextButton struct {
		Text    string  `json:"text"`
		OnClick OnClick `json:"onClick"`
	}

	OnClick struct {
		OpenLink OpenLink `json:"openLink"`
	}

	OpenLink struct {
		URL string `json:"url"`
	}
)

func TextPayload(text string) Payload {
	return Payload{Text: text}
}

func TextSection(header, text string) Section {
	return Section{
		Header:  header,
		Widgets: []Widget{{TextParagraph: &TextParagraph{Text: text}}},
	}
}

func LinkButtonSection(text, url string) Section {
	btn := Button{TextButton: TextButton{Text: text, OnClick: OnClick{OpenLink: OpenLink{URL: url}}}}
	return Section{Widgets: []Widget{{Buttons: []Button{btn}}}}
}

type (
	cardHeader struct {
		Title string `json:"title"`
	}

	wireCard struct {
		Header   cardHeader `json:"header"`
		Sections []Section  `json:"sections"`
	}
)

// MarshalJSON renders the chat webhook body: {"text": ...} or {"cards": [{"header": ..., "sections": [...]}]}.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.Card == nil {
		return json.Marshal(map[string]string{"text": p.Text})
	}
	card := wireCard{
		Header:   cardHeader{Title: p.Card.Title},
		Sections: p.Card.Sections,
	}
	if card.Header.Title == "" {
		card.Header.Title = defaultCardTitle
	}
	if card.Sections == nil {
		card.Sections = []Section{}
	}
	return json.Marshal(map[string][]wireCard{"cards": {card}})
}
