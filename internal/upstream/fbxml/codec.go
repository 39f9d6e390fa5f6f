// Package fbxml implements the legacy Fishbowl XML envelope: a <FbiXml> root
// carrying a session ticket and one message-specific request or response
// element. The closing root tag doubles as the end-of-message marker on the
// byte stream.
package fbxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// Terminator marks the end of one complete message on the socket
const Terminator = "</FbiXml>"

// Well-known protocol status codes
const (
	// StatusIndeterminate is reported when a response carries no readable
	// status indicator at all
	StatusIndeterminate = 0

	StatusSuccess       = 1000
	StatusUnknownTicket = 1001
	StatusExpiredTicket = 1002
)

// IsAuthFailure returns whether a status code denotes a rejected or expired ticket
func IsAuthFailure(code int) bool {
	return code == StatusUnknownTicket || code == StatusExpiredTicket
}

// Field is a single named value inside a request element.
// Fields are encoded in slice order as the upstream parser is positional for
// some messages.
type Field struct {
	Name  string
	Value string
}

// EncodeRequest builds a complete request envelope for the given message name.
// An empty ticket produces the empty <Ticket/> element the login handshake expects.
func EncodeRequest(ticket, name string, fields []Field) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("<FbiXml>")
	if ticket == "" {
		buf.WriteString("<Ticket/>")
	} else {
		buf.WriteString("<Ticket><Key>")
		writeEscaped(buf, ticket)
		buf.WriteString("</Key></Ticket>")
	}
	buf.WriteString("<FbiMsgsRq>")
	fmt.Fprintf(buf, "<%s>", name)
	for _, field := range fields {
		fmt.Fprintf(buf, "<%s>", field.Name)
		writeEscaped(buf, field.Value)
		fmt.Fprintf(buf, "</%s>", field.Name)
	}
	fmt.Fprintf(buf, "</%s>", name)
	buf.WriteString("</FbiMsgsRq>")
	buf.WriteString(Terminator)
	return buf.Bytes()
}

// Ticket represents the session key element of an envelope
type Ticket struct {
	Key    string `xml:"Key"`
	UserID string `xml:"UserID"`
}

// Node is a generic XML element used to traverse message-specific response payloads
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []Node     `xml:",any"`
	Text     string     `xml:",chardata"`
}

// Attr returns the value of the named attribute
func (node *Node) Attr(name string) (string, bool) {
	for _, attr := range node.Attrs {
		if attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child element with the given name, or nil
func (node *Node) Child(name string) *Node {
	for i := range node.Children {
		if node.Children[i].XMLName.Local == name {
			return &node.Children[i]
		}
	}
	return nil
}

// Map converts the element's children into a generic string-keyed mapping.
// Leaf elements become their trimmed text content, nested elements become
// nested maps and repeated element names collapse into a slice.
func (node *Node) Map() map[string]interface{} {
	result := make(map[string]interface{}, len(node.Children))
	for i := range node.Children {
		child := &node.Children[i]
		var value interface{}
		if len(child.Children) > 0 {
			value = child.Map()
		} else {
			value = strings.TrimSpace(child.Text)
		}

		name := child.XMLName.Local
		existing, ok := result[name]
		if !ok {
			result[name] = value
			continue
		}
		if slice, isSlice := existing.([]interface{}); isSlice {
			result[name] = append(slice, value)
		} else {
			result[name] = []interface{}{existing, value}
		}
	}
	return result
}

// Response is the normalized form of a decoded response envelope
type Response struct {
	Ticket        *Ticket
	StatusCode    int
	StatusMessage string
	Body          *Node
}

type envelope struct {
	XMLName xml.Name     `xml:"FbiXml"`
	Ticket  *Ticket      `xml:"Ticket"`
	Msgs    *responseSet `xml:"FbiMsgsRs"`
}

type responseSet struct {
	StatusCode    string `xml:"statusCode,attr"`
	StatusMessage string `xml:"statusMessage,attr"`
	Children      []Node `xml:",any"`
}

// DecodeResponse parses a raw response envelope into its normalized form.
// Absent or unreadable status indicators yield StatusIndeterminate rather than
// an error; only malformed XML fails.
func DecodeResponse(raw []byte) (*Response, error) {
	var env envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed response envelope: %w", err)
	}

	response := &Response{
		Ticket:     env.Ticket,
		StatusCode: StatusIndeterminate,
	}
	if env.Msgs == nil {
		return response, nil
	}

	if code, err := strconv.Atoi(env.Msgs.StatusCode); err == nil {
		response.StatusCode = code
	}
	response.StatusMessage = env.Msgs.StatusMessage

	// The message-specific element may refine the envelope-level status
	if len(env.Msgs.Children) > 0 {
		response.Body = &env.Msgs.Children[0]
		if val, ok := response.Body.Attr("statusCode"); ok {
			if code, err := strconv.Atoi(val); err == nil {
				response.StatusCode = code
			}
		}
		if val, ok := response.Body.Attr("statusMessage"); ok && val != "" {
			response.StatusMessage = val
		}
	}

	return response, nil
}

func writeEscaped(buf *bytes.Buffer, value string) {
	// xml.EscapeText only fails on a failing writer; bytes.Buffer never does
	_ = xml.EscapeText(buf, []byte(value))
}
