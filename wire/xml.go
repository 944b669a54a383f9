package wire

import (
	"encoding/xml"
	"fmt"

	"github.com/google/uuid"

	kerrors "github.com/c360/simkernel/errors"
	"github.com/c360/simkernel/option"
	"github.com/c360/simkernel/signal"
)

const (
	rootRequest = "request"
	rootReply   = "reply"

	typeArray = "array"
)

type xmlItem struct {
	Value string `xml:",chardata"`
}

type xmlArg struct {
	Name  string    `xml:"name,attr"`
	Type  string    `xml:"type,attr"`
	Elem  string    `xml:"elem,attr,omitempty"`
	Value string    `xml:"value,attr,omitempty"`
	Items []xmlItem `xml:"item"`
}

type xmlFrame struct {
	XMLName xml.Name
	UUID    string   `xml:"uuid,attr,omitempty"`
	Target  string   `xml:"target,attr,omitempty"`
	Signal  string   `xml:"signal,attr,omitempty"`
	Status  string   `xml:"status,attr,omitempty"`
	Args    []xmlArg `xml:"arg"`
	Message string   `xml:"message,omitempty"`
}

func protocolErr(format string, args ...any) error {
	args = append(args, kerrors.ErrProtocolError)
	return fmt.Errorf(format+": %w", args...)
}

// Encode serializes a frame as one XML document. Requests must carry a
// target and a signal; replies must carry a valid status.
func Encode(f *Frame) ([]byte, error) {
	if f == nil {
		return nil, protocolErr("nil frame")
	}
	doc := xmlFrame{
		UUID:   f.ID.String(),
		Target: f.Target,
		Signal: f.Signal,
	}
	if f.ID == uuid.Nil {
		doc.UUID = ""
	}

	if f.IsReply {
		doc.XMLName = xml.Name{Local: rootReply}
		switch f.Status {
		case StatusOK, StatusError:
			doc.Status = string(f.Status)
		default:
			return nil, protocolErr("reply status %q", f.Status)
		}
		doc.Message = f.Message
	} else {
		doc.XMLName = xml.Name{Local: rootRequest}
		if f.Target == "" {
			return nil, protocolErr("request without target")
		}
		if f.Signal == "" {
			return nil, protocolErr("request without signal")
		}
	}

	for _, arg := range f.Args {
		enc, err := encodeArg(arg)
		if err != nil {
			return nil, err
		}
		doc.Args = append(doc.Args, enc)
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, protocolErr("marshal frame: %v", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func encodeArg(f signal.Field) (xmlArg, error) {
	if f.Name == "" {
		return xmlArg{}, protocolErr("argument without name")
	}
	kind := f.Value.Kind()
	if kind == option.KindInvalid {
		return xmlArg{}, protocolErr("argument %q has no value", f.Name)
	}
	if kind.IsList() {
		elems, err := f.Value.List()
		if err != nil {
			return xmlArg{}, protocolErr("argument %q: %v", f.Name, err)
		}
		items := make([]xmlItem, len(elems))
		for i, e := range elems {
			items[i] = xmlItem{Value: e.Format()}
		}
		return xmlArg{
			Name:  f.Name,
			Type:  typeArray,
			Elem:  kind.Elem().String(),
			Items: items,
		}, nil
	}
	return xmlArg{
		Name:  f.Name,
		Type:  kind.String(),
		Value: f.Value.Format(),
	}, nil
}

// Decode parses one XML document into a frame. Anything malformed, from a
// wrong root tag to an unparsable argument value, fails ErrProtocolError
// with a diagnostic naming the offending part.
func Decode(data []byte) (*Frame, error) {
	var doc xmlFrame
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, protocolErr("unmarshal frame: %v", err)
	}

	f := &Frame{
		Target: doc.Target,
		Signal: doc.Signal,
	}
	switch doc.XMLName.Local {
	case rootRequest:
		if doc.Target == "" {
			return nil, protocolErr("request without target")
		}
		if doc.Signal == "" {
			return nil, protocolErr("request without signal")
		}
		if doc.Status != "" {
			return nil, protocolErr("request carries status %q", doc.Status)
		}
	case rootReply:
		f.IsReply = true
		switch Status(doc.Status) {
		case StatusOK, StatusError:
			f.Status = Status(doc.Status)
		default:
			return nil, protocolErr("reply status %q", doc.Status)
		}
		f.Message = doc.Message
	default:
		return nil, protocolErr("root tag %q", doc.XMLName.Local)
	}

	if doc.UUID != "" {
		id, err := uuid.Parse(doc.UUID)
		if err != nil {
			return nil, protocolErr("correlation id %q: %v", doc.UUID, err)
		}
		f.ID = id
	}

	seen := make(map[string]bool, len(doc.Args))
	for _, arg := range doc.Args {
		dec, err := decodeArg(arg)
		if err != nil {
			return nil, err
		}
		if seen[dec.Name] {
			return nil, protocolErr("duplicate argument %q", dec.Name)
		}
		seen[dec.Name] = true
		f.Args = append(f.Args, dec)
	}
	return f, nil
}

func decodeArg(a xmlArg) (signal.Field, error) {
	if a.Name == "" {
		return signal.Field{}, protocolErr("argument without name")
	}
	if a.Type == typeArray {
		if a.Value != "" {
			return signal.Field{}, protocolErr("array argument %q carries a scalar value", a.Name)
		}
		elemKind, err := option.ParseKind(a.Elem)
		if err != nil || elemKind.IsList() {
			return signal.Field{}, protocolErr("array argument %q element kind %q", a.Name, a.Elem)
		}
		elems := make([]option.Value, len(a.Items))
		for i, item := range a.Items {
			v, err := option.Parse(elemKind, item.Value)
			if err != nil {
				return signal.Field{}, protocolErr("array argument %q item %d: %v", a.Name, i, err)
			}
			elems[i] = v
		}
		list, err := option.List(elemKind, elems...)
		if err != nil {
			return signal.Field{}, protocolErr("array argument %q: %v", a.Name, err)
		}
		return signal.Field{Name: a.Name, Value: list}, nil
	}

	kind, err := option.ParseKind(a.Type)
	if err != nil || kind.IsList() {
		return signal.Field{}, protocolErr("argument %q type %q", a.Name, a.Type)
	}
	if len(a.Items) > 0 {
		return signal.Field{}, protocolErr("scalar argument %q carries items", a.Name)
	}
	v, err := option.Parse(kind, a.Value)
	if err != nil {
		return signal.Field{}, protocolErr("argument %q value %q: %v", a.Name, a.Value, err)
	}
	return signal.Field{Name: a.Name, Value: v}, nil
}
