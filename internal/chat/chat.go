// Package chat holds the transport-neutral message types shared by the
// dialogue engine, the authorization handshake and the bot adapter.
package chat

// Button is a single inline choice. Data is what comes back in the callback.
type Button struct {
	Label string
	Data  string
}

// Attachment is a file sent along with a prompt.
type Attachment struct {
	Name string
	Data []byte
}

// Prompt is one outbound message.
type Prompt struct {
	Text        string
	Buttons     [][]Button
	Attachments []Attachment
}

// Row builds a keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Column lays every button on its own row.
func Column(buttons ...Button) [][]Button {
	rows := make([][]Button, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, Row(b))
	}
	return rows
}

type InputKind int

const (
	InputText InputKind = iota
	InputChoice
	InputDocument
)

func (k InputKind) String() string {
	switch k {
	case InputText:
		return "text"
	case InputChoice:
		return "choice"
	case InputDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Document is an uploaded file, already downloaded by the transport.
type Document struct {
	Name string
	Data []byte
}

// Input is one inbound event from the acting user.
type Input struct {
	Kind     InputKind
	Text     string
	Document *Document
}

func Text(s string) Input {
	return Input{Kind: InputText, Text: s}
}

func Choice(data string) Input {
	return Input{Kind: InputChoice, Text: data}
}

func File(name string, data []byte) Input {
	return Input{Kind: InputDocument, Document: &Document{Name: name, Data: data}}
}
